package observerproto

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/vmihailenco/msgpack/v5"
)

//go:embed subscribe.schema.json
var subscribeSchemaJSON string

var (
	subscribeOnce   sync.Once
	subscribeSchema *jsonschema.Schema
	subscribeErr    error
)

func compiledSubscribeSchema() (*jsonschema.Schema, error) {
	subscribeOnce.Do(func() {
		subscribeSchema, subscribeErr = jsonschema.CompileString("subscribe.schema.json", subscribeSchemaJSON)
	})
	return subscribeSchema, subscribeErr
}

// ParseSubscribe validates raw against the SUBSCRIBE schema and decodes it.
func ParseSubscribe(raw []byte) (SubscribeMsg, error) {
	var msg SubscribeMsg
	s, err := compiledSubscribeSchema()
	if err != nil {
		return msg, fmt.Errorf("compile subscribe schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return msg, fmt.Errorf("bad json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return msg, fmt.Errorf("invalid SUBSCRIBE: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&msg); err != nil {
		return msg, err
	}
	if msg.ProtocolVersion != Version {
		return msg, fmt.Errorf("unsupported protocol_version %q (want %q)", msg.ProtocolVersion, Version)
	}
	return msg, nil
}

// EncodeStep packs a step message for a binary websocket frame.
func EncodeStep(m StepMsg) ([]byte, error) { return msgpack.Marshal(&m) }

func DecodeStep(b []byte) (StepMsg, error) {
	var m StepMsg
	err := msgpack.Unmarshal(b, &m)
	return m, err
}

func EncodeCrossSection(m CrossSectionMsg) ([]byte, error) { return msgpack.Marshal(&m) }

func DecodeCrossSection(b []byte) (CrossSectionMsg, error) {
	var m CrossSectionMsg
	err := msgpack.Unmarshal(b, &m)
	return m, err
}

// PeekType reads the "type" key of a msgpack-encoded server message.
func PeekType(b []byte) (string, error) {
	var head struct {
		Type string `msgpack:"type"`
	}
	if err := msgpack.Unmarshal(b, &head); err != nil {
		return "", err
	}
	return head.Type, nil
}
