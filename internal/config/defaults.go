package config

// Store backend kinds.
const (
	KindSQLite  = "sqlite"
	KindMongoDB = "mongodb"
	KindBadger  = "badger"
)

// Video hashing strategies. Sample and barcode are mutually exclusive.
const (
	VideoSample  = "sample"
	VideoBarcode = "barcode"
	VideoOff     = "off"
)

const (
	defaultDatabase   = "image_database"
	defaultCollection = "images"
	defaultTrashDir   = "./Trash"
)

var defaultLocations = map[string]string{
	KindSQLite:  "./db.sqlite",
	KindMongoDB: "mongodb://localhost:27017",
	KindBadger:  "./db.badger",
}

// DefaultLocation returns the backend's location when none is configured.
func DefaultLocation(kind string) string {
	return defaultLocations[kind]
}

// Default returns a configuration populated with built-in defaults.
func Default() Config {
	return Config{
		Store: Store{
			Kind:                  KindSQLite,
			Database:              defaultDatabase,
			Collection:            defaultCollection,
			ConnectTimeoutSeconds: 10,
		},
		Hashing: Hashing{
			Workers:              0,
			DigestSize:           16,
			VideoStrategy:        VideoSample,
			VideoSamples:         5,
			BarcodeMaxHeight:     512,
			FFmpegBinary:         "ffmpeg",
			FFprobeBinary:        "ffprobe",
			FFmpegTimeoutSeconds: 120,
		},
		Dedup: Dedup{
			TrashDir:  defaultTrashDir,
			Threshold: -1,
		},
		Watch: Watch{
			QueueSize:  256,
			DebounceMS: 500,
		},
		Server: Server{
			Bind: "127.0.0.1:8080",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}
