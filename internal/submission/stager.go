package submission

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
	"strings"
)

// ErrMissingContent is returned by Stage for an upload without bytes.
var ErrMissingContent = errors.New("attachment has no content")

// RawUpload is one file as it arrived, before staging.
type RawUpload struct {
	Name string
	Data []byte
}

// Attachment is a staged file ready for upload.
type Attachment struct {
	Field string
	Name  string
	Data  []byte
}

// Stage flattens uploads into one attachment per file, ordered by field name and then by upload
// order within the field.
func Stage(fields map[string][]RawUpload) ([]Attachment, error) {
	names := make([]string, 0, len(fields))
	total := 0
	for field, uploads := range fields {
		names = append(names, field)
		total += len(uploads)
	}
	sort.Strings(names)

	staged := make([]Attachment, 0, total)
	for _, field := range names {
		for i, u := range fields[field] {
			if len(u.Data) == 0 {
				return nil, fmt.Errorf("field %q upload %d: %w", field, i, ErrMissingContent)
			}
			name := strings.TrimSpace(u.Name)
			if name == "" {
				name = fmt.Sprintf("%s-%d", field, i+1)
			}
			staged = append(staged, Attachment{Field: field, Name: name, Data: u.Data})
		}
	}
	return staged, nil
}

type encodedUpload struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// FromVariables reads the attachments job variable. Each field holds either a single
// {name, data} object or an array of them, with data base64 encoded.
func FromVariables(vars map[string]json.RawMessage) (map[string][]RawUpload, error) {
	out := make(map[string][]RawUpload, len(vars))
	for field, raw := range vars {
		var encoded []encodedUpload
		trimmed := strings.TrimSpace(string(raw))
		switch {
		case trimmed == "" || trimmed == "null":
			continue
		case strings.HasPrefix(trimmed, "["):
			if err := json.Unmarshal(raw, &encoded); err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
		default:
			var single encodedUpload
			if err := json.Unmarshal(raw, &single); err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			encoded = []encodedUpload{single}
		}

		uploads := make([]RawUpload, 0, len(encoded))
		for i, e := range encoded {
			data, err := base64.StdEncoding.DecodeString(e.Data)
			if err != nil {
				return nil, fmt.Errorf("field %q upload %d: invalid base64: %w", field, i, err)
			}
			uploads = append(uploads, RawUpload{Name: e.Name, Data: data})
		}
		out[field] = uploads
	}
	return out, nil
}

// FromMultipart reads every file of a parsed multipart form.
func FromMultipart(form *multipart.Form) (map[string][]RawUpload, error) {
	if form == nil {
		return map[string][]RawUpload{}, nil
	}
	out := make(map[string][]RawUpload, len(form.File))
	for field, headers := range form.File {
		uploads := make([]RawUpload, 0, len(headers))
		for i, fh := range headers {
			data, err := readFile(fh)
			if err != nil {
				return nil, fmt.Errorf("field %q upload %d: %w", field, i, err)
			}
			uploads = append(uploads, RawUpload{Name: fh.Filename, Data: data})
		}
		out[field] = uploads
	}
	return out, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
