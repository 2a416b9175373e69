package research

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/status"

	"github.com/pathwise/pathwise-backend/internal/clients/gcsbucket"
	"github.com/pathwise/pathwise-backend/internal/logger"
)

// TranscriptChain resolves a video transcript through three tiers:
// platform-native captions, then speech-to-text over extracted audio
// (with an object-store cache in front), then gives up with "".
type TranscriptChain struct {
	captionsBaseURL   string
	audioExtractorURL string
	httpClient        *http.Client
	speechClient      *speech.Client
	store             gcsbucket.TranscriptStore
	log               *logger.Logger
}

func NewTranscriptChain(captionsBaseURL, audioExtractorURL string, speechClient *speech.Client, store gcsbucket.TranscriptStore, baseLog *logger.Logger) *TranscriptChain {
	if captionsBaseURL == "" {
		captionsBaseURL = "https://video.google.com/timedtext"
	}
	return &TranscriptChain{
		captionsBaseURL:   strings.TrimRight(captionsBaseURL, "/"),
		audioExtractorURL: audioExtractorURL,
		httpClient:        &http.Client{Timeout: 20 * time.Second},
		speechClient:      speechClient,
		store:             store,
		log:               baseLog.With("component", "TranscriptChain"),
	}
}

// Resolve never fails; a transcript is an enrichment, not a requirement.
func (t *TranscriptChain) Resolve(ctx context.Context, videoID string) string {
	if videoID == "" {
		return ""
	}
	if captions, err := t.fetchCaptions(ctx, videoID); err == nil && captions != "" {
		return captions
	} else if err != nil {
		t.log.Debug("Caption fetch failed", "source", "youtube", "video_id", videoID, "reason", err.Error())
	}

	if t.store != nil {
		if cached, ok, err := t.store.Get(ctx, videoID); err == nil && ok {
			return cached
		} else if err != nil {
			t.log.Debug("Transcript cache read failed", "video_id", videoID, "reason", err.Error())
		}
	}

	transcript, err := t.transcribeAudio(ctx, videoID)
	if err != nil {
		t.log.Warn("Transcription failed, giving up on transcript", "source", "youtube", "video_id", videoID, "reason", err.Error())
		return ""
	}
	if transcript != "" && t.store != nil {
		if err := t.store.Put(ctx, videoID, transcript); err != nil {
			t.log.Debug("Transcript cache write failed", "video_id", videoID, "reason", err.Error())
		}
	}
	return transcript
}

// audioRequestURL builds the extractor request. The configured URL may carry
// a {video_id} placeholder; without one the id is appended as a query
// parameter.
func audioRequestURL(base, videoID string) string {
	id := url.QueryEscape(videoID)
	if strings.Contains(base, "{video_id}") {
		return strings.ReplaceAll(base, "{video_id}", id)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "video_id=" + id
}

type timedText struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

func (t *TranscriptChain) fetchCaptions(ctx context.Context, videoID string) (string, error) {
	q := url.Values{}
	q.Set("lang", "en")
	q.Set("v", videoID)
	u := t.captionsBaseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &adapterHTTPError{StatusCode: resp.StatusCode, URL: u}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	var parsed timedText
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, line := range parsed.Texts {
		text := strings.TrimSpace(line.Value)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func (t *TranscriptChain) transcribeAudio(ctx context.Context, videoID string) (string, error) {
	if t.audioExtractorURL == "" || t.speechClient == nil {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	audioURL := audioRequestURL(t.audioExtractorURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &adapterHTTPError{StatusCode: resp.StatusCode, URL: audioURL}
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", nil
	}

	op, err := t.speechClient.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: 16000,
			LanguageCode:    "en-US",
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("speech recognize (%s): %w", status.Code(err), err)
	}
	result, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("speech result (%s): %w", status.Code(err), err)
	}
	var sb strings.Builder
	for _, r := range result.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(alts[0].GetTranscript())
	}
	return sb.String(), nil
}
