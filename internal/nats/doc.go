// Package nats carries camrelay alerts and pipeline state to a NATS server
// and receives control commands from it.
//
// # Architecture
//
//   - Publisher: NATS client owned by the service; degrades to a no-op offline
//   - Bridge: forwards event bus alerts and state to the Publisher and turns
//     control commands into restart requests on the bus
//   - Server: optional embedded broker for agents running on the same device
//
// # Subject Hierarchy
//
//	camrelay.{device}.alerts    # AlertMessage (device → server)
//	camrelay.{device}.state     # StateMessage (device → server)
//	camrelay.{device}.control   # ControlMessage (server → device)
//
// The package uses fire-and-forget messaging (core NATS, no JetStream).
//
// # Debugging with nats CLI
//
// Monitor everything a device publishes:
//
//	nats sub "camrelay.printer-1.>"
//
// Ask the device to rebuild its pipeline:
//
//	nats pub "camrelay.printer-1.control" '{"action":"restart","device":"printer-1","reason":"manual_debug"}'
//
// # Message Formats
//
// AlertMessage (camrelay.{device}.alerts):
//
//	{
//	  "device": "printer-1",
//	  "timestamp": "2024-01-01T12:00:00Z",
//	  "title": "Webcam Streaming Using Excessive CPU",
//	  "message": "The webcam streaming uses excessive CPU. ...",
//	  "severity": "WARNING",
//	  "info_url": "https://obico.io/docs/user-guides/webcam-streaming-resolution-framerate-klipper/"
//	}
//
// StateMessage (camrelay.{device}.state):
//
//	{
//	  "device": "printer-1",
//	  "timestamp": "2024-01-01T12:00:00Z",
//	  "state": "running",
//	  "run_id": "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
//	  "pid": 4242,
//	  "encoder": "h264_v4l2m2m",
//	  "width": 1280,
//	  "height": 720,
//	  "framerate": 25,
//	  "bitrate_bps": 2000000
//	}
package nats
