// Package http implements the tracker's HTTP frontend: announce and
// scrape for BitTorrent clients, plus the JSON endpoints for metadata
// submission, statistics, snapshots and shutdown.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/peerdex/peerdex/bittorrent"
	"github.com/peerdex/peerdex/pkg/log"
	"github.com/peerdex/peerdex/pkg/stop"
	"github.com/peerdex/peerdex/storage"
)

func init() {
	prometheus.MustRegister(promResponseDurationMilliseconds)
}

var promResponseDurationMilliseconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "peerdex_http_response_duration_milliseconds",
		Help:    "The duration of time it takes to receive and write a response to a request",
		Buckets: prometheus.ExponentialBuckets(9.375, 2, 10),
	},
	[]string{"action", "error"},
)

func recordResponseDuration(action string, err error, duration time.Duration) {
	var errString string
	if err != nil {
		errString = err.Error()
	}

	promResponseDurationMilliseconds.
		WithLabelValues(action, errString).
		Observe(float64(duration.Nanoseconds()) / float64(time.Millisecond))
}

// A Saver persists store dumps. Satisfied by persistence.Manager.
type Saver interface {
	Save(d *storage.Dump) error
}

// Config represents all of the configurable options for the HTTP frontend.
type Config struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RealIPHeader string        `yaml:"real_ip_header"`
}

// Frontend holds the state of the tracker's HTTP frontend.
type Frontend struct {
	srv *http.Server

	store    storage.PeerStore
	matcher  storage.Matcher
	saver    Saver
	shutdown func()

	Config
}

// NewFrontend allocates a new instance of a Frontend. shutdown is invoked
// by the shutdown endpoint and must not block.
func NewFrontend(store storage.PeerStore, matcher storage.Matcher, saver Saver, shutdown func(), cfg Config) *Frontend {
	f := &Frontend{
		store:    store,
		matcher:  matcher,
		saver:    saver,
		shutdown: shutdown,
		Config:   cfg,
	}

	// The server is built here rather than in ListenAndServe so that
	// Stop is safe to call before or during startup.
	f.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      f.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return f
}

// Handler builds the route table.
func (f *Frontend) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/", f.makeHandler("announce", f.announceRoute))
	router.GET("/announce", f.makeHandler("announce", f.announceRoute))
	router.GET("/scrape", f.makeHandler("scrape", f.scrapeRoute))
	router.POST("/add_torrent", f.makeHandler("add_torrent", f.addTorrentRoute))
	router.POST("/add_torrent_info", f.makeHandler("add_torrent_info", f.addTorrentInfoRoute))
	router.GET("/stats", f.makeHandler("stats", f.statsRoute))
	router.GET("/save_state", f.makeHandler("save_state", f.saveStateRoute))
	router.POST("/shutdown", f.makeHandler("shutdown", f.shutdownRoute))
	return router
}

// ListenAndServe blocks serving requests until Stop is called.
func (f *Frontend) ListenAndServe() error {
	if err := f.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (f *Frontend) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		c.Done(f.srv.Shutdown(context.Background()))
	}()
	return c.Result()
}

// responseHandler is a route handler that reports its status code. The
// returned status is only consulted when err is non-nil.
type responseHandler func(http.ResponseWriter, *http.Request, httprouter.Params) (int, error)

// makeHandler wraps a responseHandler with error rendering, panic
// recovery, logging and response timing. Client-caused errors surface in
// the JSON error body; anything unexpected becomes an opaque 500.
func (f *Frontend) makeHandler(action string, h responseHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		start := time.Now()
		var err error
		defer func() {
			if rec := recover(); rec != nil {
				err = errors.Errorf("panic in %s handler: %v", action, rec)
				log.Error("http: handler panicked", log.Err(err))
				writeError(w, http.StatusInternalServerError, err)
			}
			recordResponseDuration(action, err, time.Since(start))
		}()

		var status int
		status, err = h(w, r, p)
		if err != nil {
			writeError(w, status, err)
			log.Debug("http: request failed", log.Fields{
				"action": action,
				"status": status,
				"error":  err.Error(),
			})
		}
	}
}

func (f *Frontend) announceRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (int, error) {
	req, err := parseAnnounce(r, f.RealIPHeader)
	if err != nil {
		return http.StatusBadRequest, err
	}

	f.store.PutPeer(req.InfoHash, req.Peer)
	peers := f.store.ActivePeers(req.InfoHash, req.Peer.ID)
	stats := f.store.Stats(req.InfoHash)

	if err := writeAnnounceResponse(w, peers, stats); err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}

func (f *Frontend) scrapeRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (int, error) {
	ih, err := parseScrape(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	stats := f.store.Stats(ih)
	info, _ := f.store.Torrent(ih)

	resp := scrapeResponse{
		Files: map[bittorrent.InfoHash]scrapeFile{
			ih: {
				Complete:   stats.Complete,
				Downloaded: stats.Downloaded,
				Incomplete: stats.Incomplete,
				Name:       info.Name,
			},
		},
	}
	return writeJSON(w, http.StatusOK, resp)
}

func (f *Frontend) addTorrentRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (int, error) {
	info, err := parseTorrentInfo(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	// Registers the torrent under the exact submitted key, before any
	// peer has announced it. An existing record is left untouched.
	f.store.EnsureTorrent(info.InfoHash, info)

	log.Info("registered torrent", log.Fields{
		"infoHash": info.InfoHash,
		"name":     info.Name,
	})
	return writeJSON(w, http.StatusOK, messageResponse{Message: "torrent added"})
}

func (f *Frontend) addTorrentInfoRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (int, error) {
	info, err := parseTorrentInfo(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	matched, ok := f.matcher.Match(info.InfoHash, f.store.InfoHashes())
	if !ok {
		return http.StatusBadRequest, bittorrent.NotFoundError("no torrent matches the provided info_hash")
	}

	if err := f.store.UpdateTorrentInfo(matched, info); err != nil {
		return http.StatusBadRequest, err
	}

	log.Info("updated torrent info", log.Fields{
		"infoHash": matched,
		"name":     info.Name,
	})
	return writeJSON(w, http.StatusOK, messageResponse{Message: "torrent info updated"})
}

func (f *Frontend) statsRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (int, error) {
	dump := f.store.Dump()

	resp := make(map[bittorrent.InfoHash]statsEntry, len(dump.Torrents))
	for ih, td := range dump.Torrents {
		resp[ih] = statsEntry{
			Name:         td.Info.Name,
			Size:         td.Info.Size,
			CreationDate: td.Info.CreationDate,
			Stats:        td.Stats,
		}
	}
	return writeJSON(w, http.StatusOK, resp)
}

func (f *Frontend) saveStateRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (int, error) {
	// The dump is copied under the store lock; the file write happens
	// here, outside it.
	if err := f.saver.Save(f.store.Dump()); err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, http.StatusOK, messageResponse{Message: "state saved"})
}

func (f *Frontend) shutdownRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (int, error) {
	f.shutdown()
	return writeJSON(w, http.StatusOK, messageResponse{Message: "server shutting down"})
}
