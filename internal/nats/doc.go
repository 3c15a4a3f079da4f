// Package nats publishes capture activity to NATS and accepts remote capture
// commands.
//
// # Architecture
//
//   - Publisher: forwards event bus events to NATS and answers capture
//     commands on the control subject
//   - Server: optional embedded NATS server for hosts without a broker
//
// # Subject Hierarchy
//
//	qhynode.capture.{capture_id}.started   # capture accepted
//	qhynode.capture.{capture_id}.success   # frame read out
//	qhynode.capture.{capture_id}.error     # capture failed
//	qhynode.devices.{add|remove}           # QHYCCD camera hotplug
//	qhynode.library.state                  # SDK library loaded/unloaded
//	qhynode.control.capture                # request/reply capture trigger
//
// Events use fire-and-forget core NATS, no JetStream. The publisher
// degrades to a no-op while NATS is unreachable.
//
// # Debugging with nats CLI
//
// Monitor all capture traffic:
//
//	nats sub "qhynode.>"
//
// Trigger a 250 ms exposure and wait for the result:
//
//	nats req qhynode.control.capture '{"exposure_ms":250}' --timeout 30s
//
// # Message Formats
//
// CaptureMessage (qhynode.capture.{id}.success):
//
//	{
//	  "capture_id": "6f1c2a9e-5d4b-4a8e-9c1f-2b3d4e5f6a7b",
//	  "timestamp": "2026-01-01T12:00:00Z",
//	  "status": "success",
//	  "camera_id": "QHY178M-0a1b2c",
//	  "width": 1920,
//	  "height": 1080,
//	  "bpp": 16,
//	  "channels": 1,
//	  "bytes": 4147200,
//	  "duration_ms": 1042
//	}
//
// ErrorMessage (qhynode.capture.{id}.error):
//
//	{
//	  "capture_id": "6f1c2a9e-5d4b-4a8e-9c1f-2b3d4e5f6a7b",
//	  "timestamp": "2026-01-01T12:00:00Z",
//	  "kind": "DEVICE_NOT_FOUND",
//	  "step": "scan",
//	  "message": "No QHYCCD camera found"
//	}
//
// CaptureReply (reply to qhynode.control.capture):
//
//	{
//	  "ok": false,
//	  "error": "A capture is already in progress",
//	  "kind": "BUSY",
//	  "timestamp": "2026-01-01T12:00:00Z"
//	}
package nats
