package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

const serviceName = "fintrack-api"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line writer. Most callers want Info or Error;
// this is exposed so tests can capture output and the audit trail can append
// its own entries.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Info emits a JSON log line at info level.
func Info(msg string, fields map[string]any) {
	emit("info", msg, fields)
}

// Error emits a JSON log line at error level.
func Error(msg string, fields map[string]any) {
	emit("error", msg, fields)
}

// emit renders one line with the common envelope: ts, level, msg, service.
// Caller fields never override the envelope.
func emit(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg
	entry["service"] = serviceName

	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed","service":"` + serviceName + `"}`)
		return
	}
	Logger().Println(string(data))
}
