// Package extract достаёт текст из загруженных документов.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const (
	TypePDF  = "application/pdf"
	TypeText = "text/plain"
)

var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrExtract         = errors.New("failed to extract text")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// MediaType нормализует значение Content-Type: без параметров, в нижнем регистре.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// Supported сообщает, умеем ли мы извлекать текст из данного типа.
func Supported(contentType string) bool {
	switch MediaType(contentType) {
	case TypePDF, TypeText:
		return true
	}
	return false
}

// Detect определяет тип загруженного файла. Заявленный тип из заголовка части
// имеет приоритет; содержимое анализируется только если заголовок пуст или
// равен application/octet-stream.
func Detect(declared string, head []byte) string {
	mt := MediaType(declared)
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	detected := mimetype.Detect(head)
	switch {
	case detected.Is(TypePDF):
		return TypePDF
	case detected.Is(TypeText):
		return TypeText
	}
	return MediaType(detected.String())
}

// Text извлекает текст из документа указанного типа.
func Text(contentType string, data []byte) (string, error) {
	switch MediaType(contentType) {
	case TypeText:
		return plainText(data)
	case TypePDF:
		return pdfText(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrExtract)
	}
	return string(data), nil
}

func pdfText(data []byte) (text string, err error) {
	// парсер pdf паникует на части повреждённых файлов
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrExtract, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtract, err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrExtract, i, err)
		}
		// страницы без текстового слоя (сканы) ничего не добавляют
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}
