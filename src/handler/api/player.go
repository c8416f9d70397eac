package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cadence/src/history"
	"cadence/src/library"
	"cadence/src/player"
)

// API contains the state that is accessible over the REST API.
type API struct {
	player  *player.Controller
	history history.Store
	likes   *library.LikesClient
}

// jsonStatus shapes a transport state snapshot for the wire, adding the
// elapsed/total time in seconds.
func jsonStatus(st player.Status) map[string]interface{} {
	return map[string]interface{}{
		"current":  st.Current,
		"playing":  st.Playing,
		"time":     int(st.Time / time.Second),
		"duration": int(st.Duration / time.Second),
		"volume":   st.Volume,
		"muted":    st.Muted,
		"shuffle":  st.Shuffle,
		"repeat":   st.Repeat,
		"autoplay": st.Autoplay,
		"index":    st.Index,
		"queue":    st.Queue,
	}
}

func (api *API) playerStatus(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(jsonStatus(api.player.Status()))
}

func (api *API) playerSetCurrent(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Track library.Track   `json:"track"`
		Queue []library.Track `json:"queue"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}
	if data.Track.ID == "" {
		WriteError(w, r, fmt.Errorf("track has no ID"))
		return
	}

	api.player.PlayTrack(data.Track, data.Queue, false)
	w.Write([]byte("{}"))
}

func (api *API) playerNext(w http.ResponseWriter, r *http.Request) {
	api.player.NextTrack()
	w.Write([]byte("{}"))
}

func (api *API) playerPrevious(w http.ResponseWriter, r *http.Request) {
	api.player.PrevTrack()
	w.Write([]byte("{}"))
}

func (api *API) playerGetTime(w http.ResponseWriter, r *http.Request) {
	st := api.player.Status()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"time":     int(st.Time / time.Second),
		"duration": int(st.Duration / time.Second),
	})
}

func (api *API) playerSetTime(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Time int `json:"time"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.player.Seek(time.Duration(data.Time) * time.Second)
	w.Write([]byte("{}"))
}

func (api *API) playerGetPlaystate(w http.ResponseWriter, r *http.Request) {
	st := api.player.Status()
	state := player.PlayStateStopped
	switch {
	case st.Playing:
		state = player.PlayStatePlaying
	case st.Current != nil:
		state = player.PlayStatePaused
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"state": state,
	})
}

func (api *API) playerSetPlaystate(w http.ResponseWriter, r *http.Request) {
	var data struct {
		State player.PlayState `json:"state"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	playing := api.player.Status().Playing
	switch data.State {
	case player.PlayStatePlaying:
		if !playing {
			api.player.TogglePlay()
		}
	case player.PlayStatePaused, player.PlayStateStopped:
		if playing {
			api.player.TogglePlay()
		}
	default:
		WriteError(w, r, fmt.Errorf("unknown playstate %q", data.State))
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetVolume(w http.ResponseWriter, r *http.Request) {
	st := api.player.Status()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"volume": st.Volume,
		"muted":  st.Muted,
	})
}

func (api *API) playerSetVolume(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Volume int `json:"volume"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.player.SetVolume(data.Volume)
	w.Write([]byte("{}"))
}

func (api *API) playerToggleMute(w http.ResponseWriter, r *http.Request) {
	api.player.ToggleMute()
	w.Write([]byte("{}"))
}

func (api *API) playerToggleShuffle(w http.ResponseWriter, r *http.Request) {
	api.player.ToggleShuffle()
	w.Write([]byte("{}"))
}

// playerSetRepeat sets the repeat mode when one is given and cycles it
// otherwise.
func (api *API) playerSetRepeat(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Mode *player.RepeatMode `json:"mode"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if data.Mode == nil {
		api.player.CycleRepeat()
	} else {
		switch *data.Mode {
		case player.RepeatOff, player.RepeatAll, player.RepeatOne:
			api.player.SetRepeat(*data.Mode)
		default:
			WriteError(w, r, fmt.Errorf("unknown repeat mode %q", *data.Mode))
			return
		}
	}
	w.Write([]byte("{}"))
}

func (api *API) playerSetAutoplay(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Enabled bool `json:"enabled"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.player.SetAutoplay(data.Enabled)
	w.Write([]byte("{}"))
}

func (api *API) queueAdd(w http.ResponseWriter, r *http.Request) {
	track, err := decodeTrack(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	api.player.AddToQueue(track)
	w.Write([]byte("{}"))
}

func (api *API) queuePlayNext(w http.ResponseWriter, r *http.Request) {
	track, err := decodeTrack(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	api.player.PlayNext(track)
	w.Write([]byte("{}"))
}

func (api *API) historyList(w http.ResponseWriter, r *http.Request) {
	tracks := []library.Track{}
	if api.history != nil {
		if recent := api.history.Recent(r.Context()); recent != nil {
			tracks = recent
		}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tracks": tracks,
	})
}

func (api *API) likesGet(w http.ResponseWriter, r *http.Request) {
	if api.likes == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"likes": map[string]bool{},
		})
		return
	}

	ids := strings.Split(r.URL.Query().Get("ids"), ",")
	liked, err := api.likes.Liked(r.Context(), ids)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"likes": liked,
	})
}

func decodeTrack(r *http.Request) (library.Track, error) {
	var data struct {
		Track library.Track `json:"track"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		return library.Track{}, err
	}
	if data.Track.ID == "" {
		return library.Track{}, fmt.Errorf("track has no ID")
	}
	return data.Track, nil
}
