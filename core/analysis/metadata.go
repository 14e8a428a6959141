package analysis

import "musaix/model"

// Default stream parameters assumed until the analysis worker reports
// precise values.
const (
	defaultBitrate    = 128000
	defaultChannels   = 2
	defaultSampleRate = 44100
)

// EstimateStreamInfo derives coarse stream parameters from the declared
// MIME type. These are placeholders; the analysis callback supersedes them.
func EstimateStreamInfo(mimeType string) model.StreamInfo {
	bitrate := defaultBitrate
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		bitrate = 320000 // high quality MP3
	case "audio/wav", "audio/wave":
		bitrate = 1411000 // CD quality WAV
	case "audio/flac":
		bitrate = 1000000 // FLAC average
	case "audio/ogg":
		bitrate = 256000 // high quality OGG
	}

	return model.StreamInfo{
		Bitrate:    bitrate,
		Channels:   defaultChannels,
		SampleRate: defaultSampleRate,
	}
}
