package transport

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// FilePart is one uploaded file in a multipart body.
type FilePart struct {
	Field    string
	Filename string
	Data     []byte
}

// Multipart is a multipart/form-data body. Field order is preserved.
type Multipart struct {
	fields [][2]string
	files  []FilePart
}

// AddField appends a text field.
func (m *Multipart) AddField(name, value string) *Multipart {
	m.fields = append(m.fields, [2]string{name, value})
	return m
}

// AddFile appends a file part.
func (m *Multipart) AddFile(field, filename string, data []byte) *Multipart {
	m.files = append(m.files, FilePart{Field: field, Filename: filename, Data: data})
	return m
}

func (m *Multipart) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, f := range m.fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	for _, f := range m.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		h.Set("Content-Type", http.DetectContentType(f.Data))
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
