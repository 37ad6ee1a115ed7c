// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gorzx_session_recording",
		Help: "Count of sessions currently recording.",
	})

	playbackGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gorzx_session_playing",
		Help: "Count of sessions currently playing back.",
	})

	recordedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorzx_recorded_frames",
		Help: "Count of frames recorded.",
	})

	sentinelFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorzx_recorded_sentinel_frames",
		Help: "Count of recorded frames encoded as repeat sentinels.",
	})

	playedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorzx_played_frames",
		Help: "Count of frames decoded during playback.",
	})

	bookmarksTaken = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorzx_bookmarks_taken",
		Help: "Count of recording bookmarks taken.",
	})

	rollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorzx_rollbacks",
		Help: "Count of recording rollbacks performed.",
	})

	recorderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gorzx_recorder_errors",
		Help: "Count of recorder errors encountered.",
	}, []string{"type"})

	playerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gorzx_player_errors",
		Help: "Count of playback errors encountered.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		// Recorder
		recordingGauge,
		recordedFrames,
		sentinelFrames,
		bookmarksTaken,
		rollbacks,
		recorderErrors,

		// Player
		playbackGauge,
		playedFrames,
		playerErrors,
	)
}
