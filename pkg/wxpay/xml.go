package wxpay

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"sort"
)

// encodeXML renders a flat parameter map as the gateway's <xml> document.
// Keys are emitted sorted so request bodies are deterministic.
func encodeXML(params map[string]string) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b bytes.Buffer
	b.WriteString("<xml>")
	for _, k := range keys {
		b.WriteString("<" + k + ">")
		_ = xml.EscapeText(&b, []byte(params[k]))
		b.WriteString("</" + k + ">")
	}
	b.WriteString("</xml>")
	return b.Bytes()
}

// decodeXML flattens a single-level <xml> document into a map. CDATA and
// plain character data are treated alike.
func decodeXML(data []byte) (map[string]string, error) {
	params := make(map[string]string)
	dec := xml.NewDecoder(bytes.NewReader(data))
	var key string
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				key = t.Name.Local
			}
		case xml.EndElement:
			depth--
			key = ""
		case xml.CharData:
			if depth == 2 && key != "" {
				params[key] += string(t)
			}
		}
	}
	if len(params) == 0 {
		return nil, errors.New("empty xml payload")
	}
	return params, nil
}
