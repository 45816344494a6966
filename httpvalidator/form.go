package httpvalidator

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"slices"
	"sort"

	"github.com/erraggy/oasguard/openapi"
)

// formData is a decoded form submission.
type formData struct {
	values map[string]any
	// files maps field names to the uploaded part's media type.
	files map[string]string
}

// parseForm decodes a urlencoded or multipart body.
func parseForm(mediaType, contentType string, raw []byte, maxMemory int64) (*formData, error) {
	if mediaType != "multipart/form-data" {
		values, _ := parseQuery(string(raw))
		return &formData{values: values}, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, err
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("multipart body without boundary")
	}
	form, err := multipart.NewReader(bytes.NewReader(raw), boundary).ReadForm(maxMemory)
	if err != nil {
		return nil, err
	}
	defer func() { _ = form.RemoveAll() }()

	fd := &formData{values: make(map[string]any), files: make(map[string]string)}
	keys := make([]string, 0, len(form.Value))
	for k := range form.Value {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name, segs := splitBrackets(k)
		for _, val := range form.Value[k] {
			if len(segs) == 0 {
				switch cur := fd.values[name].(type) {
				case string:
					fd.values[name] = []string{cur, val}
				case []string:
					fd.values[name] = append(cur, val)
				default:
					fd.values[name] = val
				}
				continue
			}
			fd.values[name] = assign(fd.values[name], segs, val)
		}
	}
	for name, v := range fd.values {
		fd.values[name] = listify(v)
	}
	for k, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		name, _ := splitBrackets(k)
		fd.files[name] = openapi.ParseMediaType(headers[0].Header.Get("Content-Type"))
	}
	return fd, nil
}

// isFileFormat reports property schemas that carry file content.
func isFileFormat(schema map[string]any) bool {
	switch schema["format"] {
	case "binary", "base64":
		return true
	}
	return false
}

// validateForm checks a form body against the media type's object schema.
// File properties are checked for presence and declared content type;
// every other declared property goes through the property validator with
// location form-data.
func (v *Validator) validateForm(media *openapi.MediaType, fd *formData) ([]ValidationError, error) {
	schema := media.Schema
	props, _ := schema["properties"].(map[string]any)
	required := stringList(schema["required"])

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []ValidationError
	var fields []Property
	for _, name := range names {
		ps, _ := props[name].(map[string]any)
		isRequired := slices.Contains(required, name)
		if !isFileFormat(ps) {
			val, ok := fd.values[name]
			fields = append(fields, NewProperty(name, LocationFormData, isRequired, ps, val, ok))
			continue
		}

		used, uploaded := fd.files[name]
		if !uploaded {
			if _, ok := fd.values[name]; !ok && isRequired {
				errs = append(errs, ValidationError{Name: name, Code: CodeRequired, Location: LocationFormData})
			}
			continue
		}
		enc := media.Encoding[name]
		if enc.Allows(used) {
			continue
		}
		var expected any = enc.ContentTypes()
		if types := enc.ContentTypes(); len(types) == 1 {
			expected = types[0]
		}
		errs = append(errs, ValidationError{
			Name:     name,
			Code:     CodeContentType,
			Location: LocationFormData,
			Args:     map[string]any{"expected": expected, "used": used},
		})
	}

	fieldErrs, err := v.validateProperties(fields)
	if err != nil {
		return nil, err
	}
	return append(errs, fieldErrs...), nil
}
