package executor

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/torbel/Interflow/internal/condition"
)

const (
	// KindXMLParser — тип узла разбора XML.
	KindXMLParser = "xml_parser"

	// Ключи конфигурации.
	configSourceField     = "source_field"
	configStripNamespaces = "strip_namespaces"
)

// XMLParserExecutor — узел разбора XML.
//
// Превращает XML-строку в обходимую map-структуру: элемент с детьми
// или атрибутами становится map, атрибуты получают префикс "@",
// смешанный текст попадает в "#text", повторяющиеся элементы
// собираются в список, чисто текстовый элемент схлопывается в строку.
//
// Конфигурация:
//
//	{
//	    "source_field": "payload.raw",   // dot-path к XML во входе; пусто — весь вход
//	    "strip_namespaces": true         // отбрасывать namespace-префиксы (по умолчанию)
//	}
//
// Output:
//
//	{"order": {"@id": "42", "item": [{"sku": "A"}, {"sku": "B"}]}}
type XMLParserExecutor struct{}

// NewXMLParserExecutor создаёт новый XMLParserExecutor.
func NewXMLParserExecutor() *XMLParserExecutor {
	return &XMLParserExecutor{}
}

// Kind возвращает тип узла.
func (e *XMLParserExecutor) Kind() string {
	return KindXMLParser
}

// Execute разбирает XML из входных данных.
func (e *XMLParserExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	payload, err := stringPayload(req.Input, GetConfigString(req.Config, configSourceField), "xml")
	if err != nil {
		return nil, err
	}

	strip := GetConfigBool(req.Config, configStripNamespaces, true)

	parsed, err := parseXML(payload, strip)
	if err != nil {
		return nil, fmt.Errorf("%w: xml: %v", ErrFormat, err)
	}
	return &Result{Output: parsed}, nil
}

// stringPayload достаёт строковый payload из входа узла.
func stringPayload(input any, field, format string) (string, error) {
	raw := input
	if field != "" {
		v, ok := condition.ResolvePath(input, field)
		if !ok {
			return "", fmt.Errorf("%w: %s: field %q not found in input", ErrFormat, format, field)
		}
		raw = v
	}

	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("%w: %s payload must be a string, got %T", ErrFormat, format, raw)
	}
}

// parseXML разбирает документ и возвращает {имяКорня: значение}.
func parseXML(payload string, strip bool) (map[string]any, error) {
	dec := xml.NewDecoder(strings.NewReader(payload))

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("no root element")
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			value, err := parseElement(dec, start, strip)
			if err != nil {
				return nil, err
			}
			return map[string]any{xmlName(start.Name, strip): value}, nil
		}
	}
}

// parseElement рекурсивно разбирает элемент до его закрытия.
func parseElement(dec *xml.Decoder, start xml.StartElement, strip bool) (any, error) {
	node := make(map[string]any)
	for _, attr := range start.Attr {
		if strip && (attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns") {
			continue
		}
		node["@"+xmlName(attr.Name, strip)] = attr.Value
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(dec, t, strip)
			if err != nil {
				return nil, err
			}
			appendXMLChild(node, xmlName(t.Name, strip), child)

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			s := strings.TrimSpace(text.String())
			if len(node) == 0 {
				// Чисто текстовый элемент схлопывается в строку
				return s, nil
			}
			if s != "" {
				node["#text"] = s
			}
			return node, nil
		}
	}
}

// appendXMLChild добавляет ребёнка, собирая повторы в список.
func appendXMLChild(node map[string]any, name string, child any) {
	existing, ok := node[name]
	if !ok {
		node[name] = child
		return
	}
	if list, ok := existing.([]any); ok {
		node[name] = append(list, child)
		return
	}
	node[name] = []any{existing, child}
}

// xmlName возвращает имя с namespace-префиксом или без.
func xmlName(name xml.Name, strip bool) string {
	if strip || name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}
