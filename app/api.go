package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/karwei/ntfywatch/config"
	"github.com/karwei/ntfywatch/lib/api"
	"github.com/karwei/ntfywatch/lib/models"
	"github.com/karwei/ntfywatch/lib/store"
	"github.com/karwei/ntfywatch/lib/syncer"
	"github.com/karwei/ntfywatch/lib/wire"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, st *store.Store, sync *syncer.Syncer) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, st, sync)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, st *store.Store, sync *syncer.Syncer) http.Handler {
	ctrl := &controller{cfg, log, st, sync}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("ntfywatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", ctrl.listSubscriptions)
			r.Post("/", ctrl.subscribe)
			r.Delete("/{subscription_id}", ctrl.unsubscribe)
			r.Get("/{subscription_id}/notifications", ctrl.listNotifications)
			r.Delete("/{subscription_id}/notifications", ctrl.clearNotifications)
			r.Post("/{subscription_id}/poll", ctrl.poll)
		})
		r.Post("/poll", ctrl.pollAll)
		r.Post("/publish", ctrl.publish)
		r.Delete("/notifications", ctrl.deleteNotifications)

		r.Put("/users", ctrl.upsertUser)
		r.Delete("/users", ctrl.deleteUser)
		r.Put("/preferences/{key}", ctrl.setPreference)

		// Inbound webhook from the push relay. Handled under its own hard
		// budget; responds only once the store commit is awaited.
		r.Post("/push", ctrl.push)
	})

	return r
}

type controller struct {
	cfg  *config.Config
	log  *zap.Logger
	st   *store.Store
	sync *syncer.Syncer
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "error", err)
		return
	} else {
		w.WriteHeader(status)
		if b != nil {
			w.Write(b)
		}
	}
}

func (ctrl *controller) statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidTopic), errors.Is(err, store.ErrInvalidServerURL):
		return http.StatusBadRequest
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (ctrl *controller) findSubscription(r *http.Request) (*models.Subscription, error) {
	id := parseInt(chi.URLParam(r, "subscription_id"))
	return ctrl.st.GetSubscription(r.Context(), id)
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	baseURL := r.FormValue("base_url")
	topic := r.FormValue("topic")

	sub, err := ctrl.sync.Subscribe(ctx, baseURL, topic)
	if err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusCreated, SubscriptionView{}.From(sub))
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := ctrl.findSubscription(r)
	if err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	if err := ctrl.sync.Unsubscribe(r.Context(), sub); err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"deleted": sub.ID})
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := ctrl.st.ListSubscriptions(r.Context())
	if err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	views := make([]SubscriptionView, len(subs))
	for i := range subs {
		views[i] = SubscriptionView{}.From(&subs[i])
	}
	ctrl.resolve(w, http.StatusOK, views)
}

func (ctrl *controller) listNotifications(w http.ResponseWriter, r *http.Request) {
	sub, err := ctrl.findSubscription(r)
	if err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	notifs, err := ctrl.st.ListNotifications(r.Context(), sub)
	if err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	views := make([]NotificationView, len(notifs))
	for i := range notifs {
		views[i] = NotificationView{}.From(&notifs[i])
	}
	ctrl.resolve(w, http.StatusOK, views)
}

func (ctrl *controller) clearNotifications(w http.ResponseWriter, r *http.Request) {
	sub, err := ctrl.findSubscription(r)
	if err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	if err := ctrl.st.DeleteAllNotifications(r.Context(), sub); err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"cleared": sub.ID})
}

func (ctrl *controller) deleteNotifications(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	}
	if err := ctrl.st.DeleteNotifications(r.Context(), body.IDs); err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"deleted": len(body.IDs)})
}

func (ctrl *controller) poll(w http.ResponseWriter, r *http.Request) {
	sub, err := ctrl.findSubscription(r)
	if err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	inserted, err := ctrl.sync.Poll(r.Context(), sub)
	if err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"inserted": inserted})
}

func (ctrl *controller) pollAll(w http.ResponseWriter, r *http.Request) {
	ctrl.sync.PollAll(r.Context())
	ctrl.resolve(w, http.StatusOK, map[string]any{"status": "completed"})
}

func (ctrl *controller) publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	priority := models.DefaultPriority
	if raw := r.FormValue("priority"); raw != "" {
		priority = int(parseInt(raw))
	}

	err := ctrl.sync.Publish(
		ctx,
		r.FormValue("base_url"),
		r.FormValue("topic"),
		r.FormValue("message"),
		r.FormValue("title"),
		priority,
		wire.SplitTags(r.FormValue("tags")),
	)
	if err != nil {
		ctrl.reject(w, http.StatusBadGateway, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"published": true})
}

func (ctrl *controller) push(w http.ResponseWriter, r *http.Request) {
	var payload map[string]string
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ctrl.cfg.PushBudget)
	defer cancel()

	if err := ctrl.sync.HandlePushEvent(ctx, payload); err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"handled": true})
}

func (ctrl *controller) upsertUser(w http.ResponseWriter, r *http.Request) {
	baseURL := r.FormValue("base_url")
	username := r.FormValue("username")
	if baseURL == "" || username == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("base_url and username are required"))
		return
	}
	if err := ctrl.st.UpsertUser(r.Context(), baseURL, username, r.FormValue("password")); err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"base_url": baseURL, "username": username})
}

func (ctrl *controller) deleteUser(w http.ResponseWriter, r *http.Request) {
	baseURL := r.FormValue("base_url")
	if baseURL == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("base_url is required"))
		return
	}
	if err := ctrl.st.DeleteUser(r.Context(), baseURL); err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"deleted": baseURL})
}

func (ctrl *controller) setPreference(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := ctrl.st.SetPreference(r.Context(), key, r.FormValue("value")); err != nil {
		ctrl.reject(w, ctrl.statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"key": key})
}

func parseInt(s string) uint {
	u, _ := strconv.ParseUint(s, 10, 64)
	return uint(u)
}
