package transport

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// Content types публикуемых сообщений.
const (
	ContentTypeRaw  = "application/octet-stream"
	ContentTypeGob  = "application/x-gob"
	ContentTypeJSON = "application/json"
)

// Encoder сериализует сообщения, не являющиеся string или []byte.
type Encoder interface {
	Encode(msg any) ([]byte, error)
	ContentType() string
}

// EncoderFunc — адаптер функции к Encoder.
type EncoderFunc func(msg any) ([]byte, error)

// Encode вызывает f(msg).
func (f EncoderFunc) Encode(msg any) ([]byte, error) {
	return f(msg)
}

// ContentType возвращает ContentTypeRaw: формат функции неизвестен.
func (f EncoderFunc) ContentType() string {
	return ContentTypeRaw
}

// GobEncoder кодирует сообщения через encoding/gob. Encoder по умолчанию.
//
// Значения внутри interface-полей должны быть зарегистрированы через
// gob.Register (базовые типы зарегистрированы заранее).
type GobEncoder struct{}

func init() {
	// значения, которые даёт json.Unmarshal в any
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

func (GobEncoder) Encode(msg any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("gob encode %T: %w", msg, err)
	}
	return buf.Bytes(), nil
}

func (GobEncoder) ContentType() string {
	return ContentTypeGob
}

// JSONEncoder кодирует сообщения в JSON.
type JSONEncoder struct{}

func (JSONEncoder) Encode(msg any) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json encode %T: %w", msg, err)
	}
	return body, nil
}

func (JSONEncoder) ContentType() string {
	return ContentTypeJSON
}
