package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
)

// maxRequestBody caps webhook and admin request bodies.  Vendor event
// payloads are well under 8 KiB even with every optional field set.
const maxRequestBody = 64 << 10

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload.
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/x-protobuf" || ct == "application/protobuf"
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// decodeEnvelope reads a webhook body.  Protobuf bodies are a
// google.protobuf.Struct with the same shape as the JSON envelope.
func decodeEnvelope(r *http.Request) (types.WebhookEnvelope, error) {
	var env types.WebhookEnvelope

	if isProtobuf(r) {
		var st structpb.Struct
		if err := readProto(r, &st); err != nil {
			return env, fmt.Errorf("decode protobuf body: %w", err)
		}
		return envelopeFromStruct(&st)
	}

	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&env); err != nil {
		return env, fmt.Errorf("decode json body: %w", err)
	}
	return env, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
