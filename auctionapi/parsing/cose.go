package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// coseSign1Tag is the CBOR tag number registered for COSE_Sign1.
const coseSign1Tag = 18

// sign1 mirrors the four positional fields of a COSE_Sign1 message. Only
// the payload is decoded; the rest is kept raw.
type sign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   cbor.RawMessage
	Unprotected cbor.RawMessage
	Payload     []byte
	Signature   cbor.RawMessage
}

// ExtractCOSEPayload returns the receipt payload carried by a COSE_Sign1
// message without checking its signature. Tagged and bare messages are both
// accepted.
func ExtractCOSEPayload(raw []byte) ([]byte, error) {
	var tag cbor.RawTag
	if err := cbor.Unmarshal(raw, &tag); err == nil {
		if tag.Number != coseSign1Tag {
			return nil, fmt.Errorf("unexpected CBOR tag %d on receipt", tag.Number)
		}
		raw = tag.Content
	}

	var fields []cbor.RawMessage
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode receipt envelope: %w", err)
	}
	if len(fields) != 4 {
		return nil, fmt.Errorf("receipt envelope has %d fields, want 4", len(fields))
	}

	var msg sign1
	if err := cbor.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}
	if msg.Payload == nil {
		return nil, fmt.Errorf("receipt carries no payload")
	}
	return msg.Payload, nil
}
