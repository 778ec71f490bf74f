package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/models"
)

// RecognizedText is the outcome of recognizing one page image. An
// unreadable page is not an error: it comes back with empty text and the
// low-confidence marker set.
type RecognizedText struct {
	Text          string
	Confidence    float64
	LowConfidence bool
}

// TextRecognizer converts a page image into plain text.
type TextRecognizer interface {
	Recognize(ctx context.Context, page PageImage) (RecognizedText, error)
}

// OCRClient talks to the external OCR service over HTTP.
type OCRClient struct {
	httpClient          *http.Client
	baseURL             string
	confidenceThreshold float64
}

type ocrResponse struct {
	Success    bool    `json:"success"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

type ocrHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewOCRClient creates a new OCR client
func NewOCRClient(cfg *config.Config) *OCRClient {
	baseURL := cfg.OCRServiceURL
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}

	return &OCRClient{
		httpClient: &http.Client{
			Timeout: cfg.OCRTimeout,
		},
		baseURL:             baseURL,
		confidenceThreshold: cfg.OCRConfidenceThreshold,
	}
}

// IsHealthy checks if the OCR service is healthy
func (c *OCRClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("OCR service unhealthy: status %d", resp.StatusCode)
	}

	var healthResp ocrHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}

	return healthResp.Status == "healthy" && healthResp.ModelLoaded, nil
}

// Recognize extracts text from one page image. Backend outages surface as
// ErrRecognizerUnavailable; a page the backend cannot read surfaces as an
// empty low-confidence result, never as an error.
func (c *OCRClient) Recognize(ctx context.Context, page PageImage) (RecognizedText, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("page", fmt.Sprintf("page-%d.png", page.PageID))
	if err != nil {
		return RecognizedText{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(page.PNG)); err != nil {
		return RecognizedText{}, fmt.Errorf("failed to copy page data: %w", err)
	}

	writer.WriteField("confidence_threshold", fmt.Sprintf("%.2f", c.confidenceThreshold))
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/ocr/recognize", &buf)
	if err != nil {
		return RecognizedText{}, fmt.Errorf("failed to create OCR request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return RecognizedText{}, fmt.Errorf("%w: %v", models.ErrRecognizerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(resp.Body)
		return RecognizedText{}, fmt.Errorf("%w: status %d: %s", models.ErrRecognizerUnavailable, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return RecognizedText{}, fmt.Errorf("OCR request rejected with status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return RecognizedText{}, fmt.Errorf("%w: failed to decode OCR response: %v", models.ErrRecognizerUnavailable, err)
	}

	if !ocrResp.Success {
		// The backend is up but could not read this page.
		return RecognizedText{LowConfidence: true}, nil
	}

	return RecognizedText{
		Text:          ocrResp.Text,
		Confidence:    ocrResp.Confidence,
		LowConfidence: ocrResp.Confidence < c.confidenceThreshold,
	}, nil
}
