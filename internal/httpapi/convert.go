package httpapi

import (
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
)

// envelopeFromStruct maps a protobuf Struct onto the webhook envelope by
// way of its JSON form.  Struct numbers are float64, so the timestamp is
// normalised to an integer first.
func envelopeFromStruct(st *structpb.Struct) (types.WebhookEnvelope, error) {
	m := st.AsMap()
	if ts, ok := m["timestamp"].(float64); ok {
		m["timestamp"] = int64(math.Round(ts))
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return types.WebhookEnvelope{}, fmt.Errorf("re-encode struct: %w", err)
	}
	var env types.WebhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.WebhookEnvelope{}, fmt.Errorf("map struct: %w", err)
	}
	return env, nil
}
