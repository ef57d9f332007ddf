package handlers

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"videoproc/internal/httpkit"
	"videoproc/internal/pkg/errors"
	"videoproc/internal/worker/processor"
)

const maxEnvelopeBytes = 1 << 20

// pushEnvelope is a Pub/Sub push delivery.
type pushEnvelope struct {
	Message struct {
		Data       string            `json:"data"`
		MessageID  string            `json:"messageId"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// storageObject is the subset of a storage notification the trigger reads.
type storageObject struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

type processResponse struct {
	JobID           string `json:"job_id"`
	VideoID         string `json:"video_id"`
	RawObject       string `json:"raw_object"`
	ProcessedObject string `json:"processed_object,omitempty"`
	State           string `json:"state"`
	PublicURL       string `json:"public_url,omitempty"`
	DurationMS      int64  `json:"duration_ms"`
}

// ProcessVideo handles POST /process-video. It accepts a Pub/Sub push
// envelope whose data is a storage object notification, or the notification
// itself, and runs the pipeline synchronously.
func (h *Handler) ProcessVideo(w http.ResponseWriter, r *http.Request) error {
	obj, err := decodeStorageObject(r.Body)
	if err != nil {
		return err
	}
	if obj.Bucket != "" && h.rawBucket != "" && obj.Bucket != h.rawBucket {
		return errors.ValidationField("bucket", "notification is not for the raw bucket").
			WithField("value", obj.Bucket)
	}

	h.log.FromContext(r.Context()).Info("process request received", "object", obj.Name)

	res, err := h.runner.Run(r.Context(), obj.Name, "")
	if res.JobID != "" {
		w.Header().Set(httpkit.JobIDHeader, res.JobID)
	}
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, processResponse{
		JobID:           res.JobID,
		VideoID:         processor.VideoID(obj.Name),
		RawObject:       obj.Name,
		ProcessedObject: res.ProcessedObject,
		State:           string(res.State),
		PublicURL:       res.PublicURL,
		DurationMS:      res.Duration.Milliseconds(),
	})
	return nil
}

func decodeStorageObject(body io.Reader) (storageObject, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxEnvelopeBytes))
	if err != nil {
		return storageObject{}, errors.Validation("could not read request body")
	}

	var env pushEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return storageObject{}, errors.Validation("request body is not valid JSON")
	}

	payload := data
	if env.Message.Data != "" {
		payload, err = base64.StdEncoding.DecodeString(env.Message.Data)
		if err != nil {
			return storageObject{}, errors.ValidationField("message.data", "message data is not valid base64")
		}
	}

	var obj storageObject
	if err := json.Unmarshal(payload, &obj); err != nil {
		return storageObject{}, errors.ValidationField("message.data", "message data is not a JSON object")
	}
	obj.Name = strings.TrimSpace(obj.Name)
	if obj.Name == "" {
		return storageObject{}, errors.ValidationField("name", "missing object name")
	}
	return obj, nil
}
