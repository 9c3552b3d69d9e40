package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type predictResponse struct {
	Predictions [][]int32 `json:"predictions"`
	Error       string    `json:"error,omitempty"`
}

// HTTPRuntime posts batches as JSON to a model server and reads
// {"predictions": [[...], ...]} back. Predictions for padding positions are
// dropped.
type HTTPRuntime struct {
	endpoint string
	client   *http.Client
}

func NewHTTPRuntime(endpoint string, timeout time.Duration) *HTTPRuntime {
	return &HTTPRuntime{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (runtime *HTTPRuntime) Predict(ctx context.Context, batch *Batch) ([][]int32, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, runtime.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := runtime.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model server request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read model server response: %w", err)
	}

	var predictions predictResponse
	if err := json.Unmarshal(respBody, &predictions); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("model server returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("could not decode model server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, predictions.Error)
	}

	return trimPredictions(batch, predictions.Predictions)
}

func trimPredictions(batch *Batch, predictions [][]int32) ([][]int32, error) {
	if len(predictions) != batch.Len() {
		return nil, fmt.Errorf("model returned %d predictions for %d sentences", len(predictions), batch.Len())
	}
	for i, seqLen := range batch.SeqLens {
		if len(predictions[i]) < int(seqLen) {
			return nil, fmt.Errorf("model returned %d labels for sentence %d of length %d",
				len(predictions[i]), i, seqLen)
		}
		predictions[i] = predictions[i][:seqLen]
	}
	return predictions, nil
}
