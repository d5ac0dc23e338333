// Command peerdex-submit reads .torrent files and submits their
// descriptive metadata to a running tracker.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/peerdex/peerdex/bittorrent"
	"github.com/peerdex/peerdex/pkg/log"
)

const (
	submitAttempts = 4
	submitBackoff  = 2 * time.Second
	submitTimeout  = 10 * time.Second
)

var httpClient = &http.Client{Timeout: submitTimeout}

// readTorrentInfo parses a .torrent file into the tracker's metadata
// shape. The info hash is the SHA-1 of the bencoded info dictionary,
// rendered in the tracker's text form.
func readTorrentInfo(path string) (bittorrent.TorrentInfo, error) {
	var info bittorrent.TorrentInfo

	mi, err := metainfo.LoadFromFile(path)
	if err != nil {
		return info, errors.Wrap(err, "failed to read torrent file")
	}

	parsed, err := mi.UnmarshalInfo()
	if err != nil {
		return info, errors.Wrap(err, "failed to parse info dictionary")
	}

	digest := mi.HashInfoBytes()
	creationDate := mi.CreationDate
	if creationDate == 0 {
		creationDate = time.Now().Unix()
	}

	return bittorrent.TorrentInfo{
		InfoHash:     bittorrent.InfoHashFromDigest(digest[:]),
		Name:         parsed.Name,
		Size:         torrentSize(&parsed),
		PieceLength:  parsed.PieceLength,
		CreationDate: creationDate,
		Comment:      mi.Comment,
		CreatedBy:    mi.CreatedBy,
	}, nil
}

// torrentSize is the total payload size: the single-file length, or the
// sum of the per-file lengths in multi-file mode.
func torrentSize(info *metainfo.Info) int64 {
	if len(info.Files) == 0 {
		return info.Length
	}

	var total int64
	for _, f := range info.Files {
		total += f.Length
	}
	return total
}

// submit POSTs the metadata to the tracker, retrying transient network
// failures with a fixed backoff. A non-2xx response is terminal.
func submit(trackerURL string, info bittorrent.TorrentInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	op := func() error {
		resp, err := httpClient.Post(trackerURL+"/add_torrent_info", "application/json", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return backoff.Permanent(fmt.Errorf("tracker rejected submission: %s", resp.Status))
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(submitBackoff), submitAttempts-1)
	return backoff.Retry(op, policy)
}

func main() {
	var trackerURL string

	rootCmd := &cobra.Command{
		Use:   "peerdex-submit file.torrent...",
		Short: "Submit torrent metadata to a tracker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				info, err := readTorrentInfo(path)
				if err != nil {
					log.Error("skipping torrent", log.Err(err), log.Fields{"path": path})
					failed++
					continue
				}

				if err := submit(trackerURL, info); err != nil {
					log.Error("failed to submit torrent", log.Err(err), log.Fields{"path": path})
					failed++
					continue
				}
				log.Info("submitted torrent info", log.Fields{
					"name":     info.Name,
					"infoHash": info.InfoHash,
				})
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d submissions failed", failed, len(args))
			}
			return nil
		},
	}

	rootCmd.Flags().StringVar(&trackerURL, "tracker", "http://localhost:6969", "base URL of the tracker")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal("failed to run", log.Err(err))
	}
}
