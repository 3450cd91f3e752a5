// Package applog is the shared stdlib-log wrapper used across webrtcapp,
// the engine adapter, and the signaling adapter, so every package logs with
// the same two call shapes instead of reimplementing log.Printf wrappers.
package applog

import "log"

func Info(msg string, fields map[string]interface{}) {
	log.Printf("[INFO] %s | %v", msg, fields)
}

func Error(msg string, err error, fields map[string]interface{}) {
	log.Printf("[ERROR] %s: %v | %v", msg, err, fields)
}

func Warn(msg string, fields map[string]interface{}) {
	log.Printf("[WARN] %s | %v", msg, fields)
}
