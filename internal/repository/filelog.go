// Package repository содержит журнал заявок и необязательный реестр оплат в PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmeshcher/eorimag/internal/model"
)

// OrdersFileName задаёт имя файла журнала заявок внутри каталога данных.
const OrdersFileName = "orders.tsv"

// FileLog дописывает заявки в текстовый файл, по одной строке с полями через табуляцию.
// Каждая строка пишется одним вызовом write в файл, открытый с O_APPEND,
// поэтому параллельные запросы не перемешивают строки.
type FileLog struct {
	path string
}

// NewFileLog создаёт журнал в указанном каталоге.
func NewFileLog(dir string) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileLog{path: filepath.Join(dir, OrdersFileName)}, nil
}

// Path возвращает путь к файлу журнала.
func (l *FileLog) Path() string {
	return l.path
}

// Append дописывает одну запись в журнал.
func (l *FileLog) Append(ctx context.Context, rec model.OrderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open order log: %w", err)
	}

	if _, err := f.WriteString(FormatRecord(rec)); err != nil {
		f.Close()
		return fmt.Errorf("write order log: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close order log: %w", err)
	}

	return nil
}

// FormatRecord форматирует запись журнала в строку с завершающим переводом строки.
// Порядок полей: время, услуга, имя, компания, email, телефон, CNP/CUI, примечания, файлы.
func FormatRecord(rec model.OrderRecord) string {
	fields := []string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.ServiceKey,
		rec.FullName,
		rec.Company,
		rec.Email,
		rec.Phone,
		rec.NationalID,
		rec.Notes,
		strings.Join(rec.Files, ","),
	}

	for i, f := range fields {
		fields[i] = cleanField(f)
	}

	return strings.Join(fields, "\t") + "\n"
}

var fieldReplacer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func cleanField(s string) string {
	return strings.TrimSpace(fieldReplacer.Replace(s))
}
