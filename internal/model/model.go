// Package model содержит доменные сущности сервиса оформления заявок EORI.
package model

import "time"

// Submission описывает заявку, отправленную через форму.
// После записи в журнал заявка не изменяется.
type Submission struct {
	ServiceKey    string
	FullName      string
	Company       string
	Email         string
	Phone         string
	NationalID    string
	Notes         string
	AcceptedTerms bool
	SignatureData string
	IDFront       *UploadedFile
	IDBack        *UploadedFile
	ExtraDoc      *UploadedFile
	SubmittedAt   time.Time
}

// UploadedFile содержит файл, полученный из multipart-формы.
type UploadedFile struct {
	Filename string
	Data     []byte
}

// StoredUpload описывает файл, сохранённый в хранилище загрузок.
type StoredUpload struct {
	Name         string
	OriginalName string
	Data         []byte
}

// ServiceEntry описывает услугу из каталога.
type ServiceEntry struct {
	Key      string `yaml:"key"`
	Label    string `yaml:"label"`
	Price    string `yaml:"price"`
	PriceRef string `yaml:"price_ref"`
}

// Available сообщает, настроена ли для услуги цена у платёжного провайдера.
func (e ServiceEntry) Available() bool {
	return e.PriceRef != ""
}

// OrderRecord описывает одну строку журнала заявок.
type OrderRecord struct {
	Timestamp  time.Time
	ServiceKey string
	FullName   string
	Company    string
	Email      string
	Phone      string
	NationalID string
	Notes      string
	Files      []string
}

// PaymentRecord фиксирует факт подтверждённой оплаты.
type PaymentRecord struct {
	SessionID   string
	ServiceKey  string
	Email       string
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
	PaidAt      time.Time
}

// EventType описывает тип события платёжного провайдера.
type EventType string

const (
	EventCheckoutCompleted EventType = "checkout.session.completed"
)

// PaymentEvent содержит проверенное событие вебхука.
type PaymentEvent struct {
	ID          string
	Type        EventType
	SessionID   string
	Email       string
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Ключи метаданных платёжной сессии.
const (
	MetaServiceKey = "service_key"
	MetaFullName   = "full_name"
	MetaCompany    = "company"
	MetaEmail      = "email"
	MetaPhone      = "phone"
	MetaNationalID = "cnp_cui"
	MetaNotes      = "notes"
	MetaFiles      = "files"
)
