// Package catalog содержит каталог услуг, предлагаемых в форме заявки.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/eorimag/internal/model"
)

// Catalog хранит неизменяемый упорядоченный список услуг.
type Catalog struct {
	entries []model.ServiceEntry
	byKey   map[string]int
}

// Default возвращает встроенный список услуг без ссылок на цены провайдера.
func Default() []model.ServiceEntry {
	return []model.ServiceEntry{
		{Key: "eori_ro", Label: "Obținere cod EORI: Persoană Fizică", Price: "75 RON"},
		{Key: "eori_update", Label: "Obținere cod EORI: Persoană Juridică", Price: "99 RON"},
		{Key: "gb_eori", Label: "Obținere cod EORI Marea Britanie", Price: "149 RON"},
		{Key: "resend", Label: "Retransmitere confirmare EORI", Price: "49 RON"},
	}
}

type fileCatalog struct {
	Services []model.ServiceEntry `yaml:"services"`
}

// LoadFile читает список услуг из YAML-файла.
func LoadFile(path string) ([]model.ServiceEntry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	for i, e := range fc.Services {
		if e.Key == "" {
			return nil, fmt.Errorf("catalog entry %d: empty key", i)
		}
	}

	return fc.Services, nil
}

// New создаёт каталог. Ссылки на цены из prices заменяют указанные в записях;
// при повторе ключа побеждает последняя запись.
func New(entries []model.ServiceEntry, prices map[string]string) *Catalog {
	c := &Catalog{byKey: make(map[string]int, len(entries))}

	for _, e := range entries {
		if ref, ok := prices[e.Key]; ok && ref != "" {
			e.PriceRef = ref
		}
		if i, ok := c.byKey[e.Key]; ok {
			c.entries[i] = e
			continue
		}
		c.byKey[e.Key] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	return c
}

// Lookup возвращает услугу по ключу.
func (c *Catalog) Lookup(key string) (model.ServiceEntry, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return model.ServiceEntry{}, false
	}
	return c.entries[i], true
}

// PriceRef возвращает ссылку на цену провайдера для услуги или пустую строку.
func (c *Catalog) PriceRef(key string) string {
	e, _ := c.Lookup(key)
	return e.PriceRef
}

// Entries возвращает копию списка услуг в порядке каталога.
func (c *Catalog) Entries() []model.ServiceEntry {
	res := make([]model.ServiceEntry, len(c.entries))
	copy(res, c.entries)
	return res
}
