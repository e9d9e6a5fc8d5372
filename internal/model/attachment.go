package model

// AttachmentKind различает способы передачи вложения.
type AttachmentKind int

const (
	// AttachmentFile ссылается на файл в файловой системе.
	AttachmentFile AttachmentKind = iota
	// AttachmentInline содержит имя и данные в памяти.
	AttachmentInline
)

// Attachment описывает вложение письма: либо путь к файлу, либо имя и данные.
type Attachment struct {
	Kind AttachmentKind
	Path string
	Name string
	Data []byte
}

// FileReference создаёт вложение, ссылающееся на файл по пути.
func FileReference(path string) Attachment {
	return Attachment{Kind: AttachmentFile, Path: path}
}

// InlineBlob создаёт вложение с данными в памяти.
func InlineBlob(name string, data []byte) Attachment {
	return Attachment{Kind: AttachmentInline, Name: name, Data: data}
}
