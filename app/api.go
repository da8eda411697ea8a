package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tubefeed/tubefeed/config"
	"github.com/tubefeed/tubefeed/lib"
	"github.com/tubefeed/tubefeed/lib/cursor"
	"github.com/tubefeed/tubefeed/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{cfg, log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", ctrl.health)

	r.Get("/websub", ctrl.verifySubscription)
	r.Post("/websub", ctrl.ingestNotification)

	r.Route("/api", func(r chi.Router) {
		r.Get("/videos", ctrl.listLatestVideos)
		r.Get("/channels/{channel_id}", ctrl.getChannelPage)
		r.Get("/playlists", ctrl.listPlaylists)
		r.Get("/playlists/{playlist_id}", ctrl.getPlaylist)
		r.Get("/search", ctrl.searchVideos)
	})

	r.Route("/admin", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("tubefeed", creds))
		} else {
			log.Sugar().Info("Admin auth is disabled since no credentials are defined")
		}

		r.Post("/channels/import", ctrl.importChannel)
		r.Post("/subscriptions", ctrl.requestSubscription)
		r.Get("/subscriptions", ctrl.listSubscriptions)
	})

	return r
}

type controller struct {
	cfg *config.Config
	log *zap.Logger
	svc *lib.Service
}

// reject maps service sentinels onto status codes. Internal failures never
// leak detail into the response body.
func (ctrl *controller) reject(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lib.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lib.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, lib.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(b)
}

func (ctrl *controller) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if err := ctrl.svc.Health(r.Context()); err != nil {
		ctrl.resolve(w, http.StatusInternalServerError, map[string]any{"ok": false, "db": false})
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"ok": true, "db": true})
}

func (ctrl *controller) verifySubscription(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lease, _ := strconv.ParseInt(q.Get("hub.lease_seconds"), 10, 64)

	challenge, err := ctrl.svc.VerifySubscription(r.Context(), lib.VerificationRequest{
		Mode:         q.Get("hub.mode"),
		Topic:        q.Get("hub.topic"),
		Challenge:    q.Get("hub.challenge"),
		VerifyToken:  q.Get("hub.verify_token"),
		LeaseSeconds: lease,
	})
	if err != nil {
		ctrl.reject(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(challenge))
}

func (ctrl *controller) ingestNotification(w http.ResponseWriter, r *http.Request) {
	maxBytes := ctrl.cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	rcpt, err := ctrl.svc.IngestNotification(r.Context(), body, r.Header.Get("X-Hub-Signature"), r.Header.Get("X-Hub-Topic"))
	if err != nil {
		ctrl.reject(w, err)
		return
	}

	if rcpt.Dropped && ctrl.cfg.Debug {
		w.Header().Set("X-Drop-Reason", rcpt.DropReason)
		w.Header().Set("X-Drop-Ref", rcpt.DropRef)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ctrl *controller) listLatestVideos(w http.ResponseWriter, r *http.Request) {
	cur, hasCursor := cursor.Decode(r.URL.Query().Get("cursor"))
	rows, next, err := ctrl.svc.ListLatestVideos(r.Context(), cur, hasCursor, queryInt(r, "limit"))
	if err != nil {
		ctrl.reject(w, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	ctrl.resolve(w, http.StatusOK, VideoPageView{
		Videos:     FromMany[lib.VideoRow, VideoView](rows),
		NextCursor: optional(next),
	})
}

func (ctrl *controller) getChannelPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cursorRaw := q.Get("videos_cursor")
	if cursorRaw == "" {
		cursorRaw = q.Get("cursor")
	}
	cur, hasCursor := cursor.Decode(cursorRaw)

	page, err := ctrl.svc.GetChannelPage(r.Context(), lib.ChannelPageRequest{
		ChannelID:        chi.URLParam(r, "channel_id"),
		IncludeChannel:   q.Get("include_channel") != "0",
		IncludePlaylists: q.Get("include_playlists") != "0",
		IncludeVideos:    q.Get("include_videos") != "0",
		Cursor:           cur,
		HasCursor:        hasCursor,
		Limit:            queryInt(r, "limit"),
		PlaylistsLimit:   queryInt(r, "playlists_limit"),
	})
	if err != nil {
		ctrl.reject(w, err)
		return
	}

	out := map[string]any{}
	if page.Channel != nil {
		out["channel"] = ChannelView{}.From(*page.Channel)
	}
	if page.Playlists != nil {
		out["playlists"] = FromMany[models.Playlist, ChannelPlaylistView](page.Playlists)
	}
	if page.Videos != nil {
		out["videos"] = FromMany[lib.VideoRow, VideoView](page.Videos)
		out["videos_next_cursor"] = optional(page.VideosNextCursor)
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	ctrl.resolve(w, http.StatusOK, out)
}

func (ctrl *controller) listPlaylists(w http.ResponseWriter, r *http.Request) {
	cur, hasCursor := cursor.Decode(r.URL.Query().Get("cursor"))
	rows, next, err := ctrl.svc.ListPlaylists(r.Context(), cur, hasCursor, queryInt(r, "limit"))
	if err != nil {
		ctrl.reject(w, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=120")
	ctrl.resolve(w, http.StatusOK, PlaylistPageView{
		Playlists:  FromMany[lib.PlaylistRow, PlaylistView](rows),
		NextCursor: optional(next),
	})
}

func (ctrl *controller) getPlaylist(w http.ResponseWriter, r *http.Request) {
	row, err := ctrl.svc.GetPlaylist(r.Context(), chi.URLParam(r, "playlist_id"))
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"playlist": PlaylistView{}.From(*row)})
}

func (ctrl *controller) searchVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	cur, hasCursor := cursor.Decode(r.URL.Query().Get("cursor"))
	rows, next, err := ctrl.svc.SearchVideos(r.Context(), q, cur, hasCursor, queryInt(r, "limit"))
	if err != nil {
		ctrl.reject(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	ctrl.resolve(w, http.StatusOK, SearchPageView{
		Query:      q,
		Results:    FromMany[lib.VideoRow, VideoView](rows),
		NextCursor: optional(next),
	})
}

func (ctrl *controller) importChannel(w http.ResponseWriter, r *http.Request) {
	channel, changed, err := ctrl.svc.ImportChannel(r.Context(), r.FormValue("feed_url"))
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{
		"channel":      ChannelView{}.From(*channel),
		"rows_changed": changed,
	})
}

func (ctrl *controller) requestSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := ctrl.svc.RequestSubscription(r.Context(), r.FormValue("topic"), r.FormValue("channel_id"))
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusAccepted, map[string]any{
		"topic":  sub.Topic,
		"status": sub.Status,
	})
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	rows, err := ctrl.svc.ListSubscriptions(r.Context())
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{
		"subscriptions": FromMany[lib.SubscriptionRow, SubscriptionView](rows),
	})
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
