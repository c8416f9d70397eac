package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"cadence/src/history"
	"cadence/src/library"
	"cadence/src/player"
	"cadence/src/util/eventsource"
)

// InitRouter attaches all API routes to the specified router.
func InitRouter(r chi.Router, pl *player.Controller, hist history.Store, likes *library.LikesClient) {
	api := API{player: pl, history: hist, likes: likes}
	r.Route("/player", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Get("/status", api.playerStatus)
		r.Post("/current", api.playerSetCurrent)
		r.Post("/next", api.playerNext)
		r.Post("/previous", api.playerPrevious)
		r.Get("/time", api.playerGetTime)
		r.Post("/time", api.playerSetTime)
		r.Get("/playstate", api.playerGetPlaystate)
		r.Post("/playstate", api.playerSetPlaystate)
		r.Get("/volume", api.playerGetVolume)
		r.Post("/volume", api.playerSetVolume)
		r.Post("/mute", api.playerToggleMute)
		r.Post("/shuffle", api.playerToggleShuffle)
		r.Post("/repeat", api.playerSetRepeat)
		r.Post("/autoplay", api.playerSetAutoplay)
		r.Post("/queue", api.queueAdd)
		r.Post("/queue/next", api.queuePlayNext)
		r.Get("/events", api.playerEvents)
	})

	r.With(jsonCtx).Get("/history", api.historyList)
	r.With(jsonCtx).Get("/likes", api.likesGet)
}

// WriteError writes an error to the client or an empty object if err is nil.
//
// An attempt is made to tune the response format to the requestor.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	log.Errorf("Error serving %s: %v", r.RemoteAddr, err)
	w.WriteHeader(http.StatusBadRequest)

	if r.Header.Get("X-Requested-With") == "" {
		w.Write([]byte(err.Error()))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

// playerEvents maps the typed controller events onto a named Server-Sent
// Events stream.
func (api *API) playerEvents(w http.ResponseWriter, r *http.Request) {
	es, err := eventsource.Begin(w, r)
	if err != nil {
		log.Errorf("Could not start event stream for %s: %v", r.RemoteAddr, err)
		return
	}

	if err := es.EventJSON("status", jsonStatus(api.player.Status())); err != nil {
		return
	}

	for event := range api.player.Events().Listen(r.Context()) {
		var err error
		switch t := event.(type) {
		case player.TimeEvent:
			err = es.EventJSON("time", map[string]interface{}{
				"time":     int(t.Time / time.Second),
				"duration": int(t.Duration / time.Second),
			})
		case player.PlayStateEvent:
			err = es.EventJSON("playstate", map[string]interface{}{
				"state": t.State,
			})
		case player.TrackEvent:
			err = es.EventJSON("track", map[string]interface{}{
				"id": t.ID,
			})
		case player.PlaylistEvent:
			err = es.EventJSON("playlist", map[string]interface{}{
				"index": t.Index,
			})
		case player.VolumeEvent:
			err = es.EventJSON("volume", map[string]interface{}{
				"volume": t.Volume,
				"muted":  t.Muted,
			})
		case player.ShuffleEvent:
			err = es.EventJSON("shuffle", map[string]interface{}{
				"shuffle": t.Shuffle,
			})
		case player.RepeatEvent:
			err = es.EventJSON("repeat", map[string]interface{}{
				"repeat": t.Mode,
			})
		case player.AutoplayEvent:
			err = es.EventJSON("autoplay", map[string]interface{}{
				"autoplay": t.Enabled,
			})
		default:
			log.Debugf("Unmapped event %#v", event)
			continue
		}
		if err != nil {
			return
		}
	}
}

func jsonCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
