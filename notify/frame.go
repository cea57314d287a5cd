package notify

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/moyoez/blendconv/types"
)

// Classify decodes one inbound text frame. Only a frame that is not JSON at all
// returns ErrProtocolDesync; any other shape without a usable connectionId or
// jobStatus string is Unrecognized.
//
// jobStatus is checked before connectionId: the server relays whole job
// records, which carry the connectionId they were routed by.
func Classify(raw []byte) (types.JobNotification, error) {
	n := types.JobNotification{Kind: types.NotificationUnrecognized, Raw: string(raw)}

	var decoded any
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return n, fmt.Errorf("%w: %v", types.ErrProtocolDesync, err)
	}
	frame, ok := decoded.(map[string]any)
	if !ok {
		return n, nil
	}

	if status := stringField(frame, "jobStatus"); status != "" {
		n.Kind = types.NotificationJobStatus
		n.Status = status
		n.ResourceID = stringField(frame, "modelId")
		n.JobID = stringField(frame, "jobId")
		n.Error = stringField(frame, "error")
		return n, nil
	}
	if token := stringField(frame, "connectionId"); token != "" {
		n.Kind = types.NotificationSessionAssigned
		n.Token = token
	}
	return n, nil
}

// stringField returns frame[key] when it is a string, else "".
func stringField(frame map[string]any, key string) string {
	s, _ := frame[key].(string)
	return s
}

func encodeInit() ([]byte, error) {
	return sonic.Marshal(types.InitFrame{Action: "init"})
}
