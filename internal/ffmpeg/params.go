package ffmpeg

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Relay ports.
const (
	MediaPort = 8004 // relay video port
	TrialPort = 8014 // throwaway port used by trial encodes
)

// PacketSize is the RTP payload size passed to the muxer.
const PacketSize = 1300

// StreamParams describes a long-running MJPEG to H.264/RTP encode.
type StreamParams struct {
	Binary     string // ffmpeg executable
	Source     string // MJPEG stream URL
	Framerate  int
	BitrateBps int
	Width      int
	Height     int
	Encoder    string // h264_omx, h264_v4l2m2m
	RelayHost  string // 127.0.0.1
	RelayPort  int    // 0 means MediaPort
}

// Validate checks that every field needed by the command line is set.
func (p StreamParams) Validate() error {
	var errs []error
	if p.Binary == "" {
		errs = append(errs, errors.New("binary is required"))
	}
	if p.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if p.Framerate <= 0 {
		errs = append(errs, fmt.Errorf("invalid framerate %d", p.Framerate))
	}
	if p.BitrateBps <= 0 {
		errs = append(errs, fmt.Errorf("invalid bitrate %d", p.BitrateBps))
	}
	if p.Width <= 0 || p.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", p.Width, p.Height))
	}
	if p.Encoder == "" {
		errs = append(errs, errors.New("encoder is required"))
	}
	if p.RelayHost == "" {
		errs = append(errs, errors.New("relay host is required"))
	}
	return errors.Join(errs...)
}

// OutputURL returns the RTP destination.
func (p StreamParams) OutputURL() string {
	port := p.RelayPort
	if port == 0 {
		port = MediaPort
	}
	return RTPURL(p.RelayHost, port)
}

// TrialParams describes a short trial encode of a sample file.
type TrialParams struct {
	Binary  string
	Sample  string // path to a short mp4
	Encoder string
	Port    int // 0 means TrialPort
}

// OutputURL returns the RTP destination of the trial.
func (p TrialParams) OutputURL() string {
	port := p.Port
	if port == 0 {
		port = TrialPort
	}
	return RTPURL("localhost", port)
}

// RTPURL formats an rtp:// URL with the fixed packet size.
func RTPURL(host string, port int) string {
	return "rtp://" + net.JoinHostPort(host, strconv.Itoa(port)) + "?pkt_size=" + strconv.Itoa(PacketSize)
}
