// Package pipeline runs the background processing stages for autovoyce:
// transcript extraction for the caller-selected videos, then chunk/embed/
// upsert into the session's index namespace.
//
// The search/selection stage happens synchronously in the request façade and
// never reaches this package. Once dispatched, the State is owned exclusively
// by the background task; per-item failures are recorded inline and never
// halt the run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/autovoyce/autovoyce/internal/events"
	"github.com/autovoyce/autovoyce/internal/youtube"
)

// State is the mutable record threaded through the pipeline stages. It is
// constructed per processing request and discarded after the final stage.
type State struct {
	UserQuery  string
	VideoIDs   []string
	Transcript string
	Namespace  string
	SessionID  string

	// Result carries the upload stage's outcome as a human-readable string;
	// stage failures land here instead of propagating.
	Result string
}

// Uploader is the store's chunk→embed→upsert path.
type Uploader interface {
	Upload(ctx context.Context, namespace, text string) (int, error)
}

// SessionChecker answers whether a session is still live. The runner checks
// this before the upload stage so an expired session's pipeline does not
// upsert into a namespace being torn down.
type SessionChecker interface {
	Namespace(sessionID string) (string, bool)
	Touch(sessionID string)
}

// Runner executes the pipeline stages for one State.
type Runner struct {
	fetcher  youtube.Fetcher
	uploader Uploader
	sessions SessionChecker
	events   *events.Log
}

// NewRunner creates a runner over the given collaborators.
func NewRunner(fetcher youtube.Fetcher, uploader Uploader, sessions SessionChecker, log *events.Log) *Runner {
	return &Runner{fetcher: fetcher, uploader: uploader, sessions: sessions, events: log}
}

// Run executes the transcript and upload stages, emitting events at every
// transition. It never returns an error: all failures are captured in events
// and in State.Result so the dispatch layer has nothing to propagate.
func (r *Runner) Run(ctx context.Context, state *State) {
	total := len(state.VideoIDs)
	r.events.Emit(state.SessionID, events.TypeProcessingStarted,
		fmt.Sprintf("Processing started for %d videos", total), nil)

	r.runTranscripts(ctx, state)
	r.runUpload(ctx, state)

	// Keep the session alive now that work finished, so the caller has the
	// full idle window to start querying.
	r.sessions.Touch(state.SessionID)

	r.events.Emit(state.SessionID, events.TypeProcessingComplete,
		"All videos processed successfully", nil)
}

// runTranscripts fetches each selected video's transcript strictly in order.
// The aggregation order matches the selection order regardless of per-item
// latency; a failed fetch contributes an inline error block and the run
// continues.
func (r *Runner) runTranscripts(ctx context.Context, state *State) {
	total := len(state.VideoIDs)
	r.events.Emit(state.SessionID, events.TypeTranscriptStarted,
		fmt.Sprintf("Starting transcript extraction for %d videos", total), nil)

	for i, videoID := range state.VideoIDs {
		itemData := map[string]any{
			"video_id":     videoID,
			"video_number": i + 1,
			"total_videos": total,
		}
		r.events.Emit(state.SessionID, events.TypeVideoProcessing,
			fmt.Sprintf("Processing video %d/%d: %s", i+1, total, videoID), itemData)

		text, err := r.fetcher.Fetch(ctx, videoID)
		if err != nil {
			state.Transcript += fmt.Sprintf("\n\nError for Video ID-%s: \n%v", videoID, err)
			errData := map[string]any{
				"video_id":     videoID,
				"video_number": i + 1,
				"total_videos": total,
				"error":        err.Error(),
			}
			r.events.Emit(state.SessionID, events.TypeVideoError,
				fmt.Sprintf("Error processing video %d/%d: %v", i+1, total, err), errData)
			continue
		}

		state.Transcript += fmt.Sprintf("\n\nTranscript for Video ID-%s: \n%s", videoID, text)
		r.events.Emit(state.SessionID, events.TypeVideoProcessed,
			fmt.Sprintf("Video %d/%d processed successfully", i+1, total), itemData)
	}

	r.events.Emit(state.SessionID, events.TypeTranscriptComplete,
		fmt.Sprintf("Transcript extraction completed for %d videos", total), nil)
}

// runUpload hands the aggregated transcript to the store under the session's
// namespace. A hard failure is converted to the Result string and an error
// event, never propagated.
func (r *Runner) runUpload(ctx context.Context, state *State) {
	if _, live := r.sessions.Namespace(state.SessionID); !live {
		// The session expired mid-flight; its namespace deletion may already
		// be in progress. Skip the upload rather than racing it.
		state.Result = "Upload skipped: session expired during processing."
		r.events.Emit(state.SessionID, events.TypeUploadError,
			"Session expired before upload, skipping", map[string]any{"namespace": state.Namespace})
		log.Warn().
			Str("sessionId", state.SessionID).
			Str("namespace", state.Namespace).
			Msg("Session expired mid-pipeline, upload skipped")
		return
	}

	r.events.Emit(state.SessionID, events.TypeUploadStarted,
		fmt.Sprintf("Starting upload to namespace: %s", state.Namespace),
		map[string]any{"namespace": state.Namespace})

	count, err := r.uploader.Upload(ctx, state.Namespace, state.Transcript)
	if err != nil {
		state.Result = fmt.Sprintf("Error during upload: %v", err)
		r.events.Emit(state.SessionID, events.TypeUploadError,
			fmt.Sprintf("Error uploading to index: %v", err),
			map[string]any{"error": err.Error(), "namespace": state.Namespace})
		log.Error().
			Err(err).
			Str("sessionId", state.SessionID).
			Str("namespace", state.Namespace).
			Msg("Upload stage failed")
		return
	}

	r.events.Emit(state.SessionID, events.TypeChunksUploaded,
		fmt.Sprintf("Uploaded %d chunks to index", count),
		map[string]any{"chunk_count": count, "namespace": state.Namespace})
	r.events.Emit(state.SessionID, events.TypeUploadComplete,
		fmt.Sprintf("Successfully uploaded to namespace: %s", state.Namespace),
		map[string]any{"namespace": state.Namespace})

	state.Result = fmt.Sprintf("Transcript successfully uploaded to namespace '%s'.", state.Namespace)
}
