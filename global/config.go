package global

import (
	"os"
	"strconv"

	"PChat/logger"
	ids "PChat/tools/ids"
	security "PChat/tools/security"
)

// AppConfig carries everything the process reads from the environment.
// Defaults target a local dev setup.
type AppConfig struct {
	Addr      string // HTTP+WS listen address
	NodeID    int64  // snowflake / relay-bridge node ID
	MongoURI  string
	MongoDB   string
	MongoUser string
	MongoPass string
	RedisAddr string
	RedisPass string
	RedisDB   int
	NatsURL   string // empty => relay bridge disabled
	UploadDir string
}

var Global = load()

func load() AppConfig {
	return AppConfig{
		Addr:      envOr("CHAT_ADDR", ":8080"),
		NodeID:    envInt64("NODE_ID", 1),
		MongoURI:  envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   envOr("MONGO_DB", "chat_app"),
		MongoUser: os.Getenv("MONGO_USER"),
		MongoPass: os.Getenv("MONGO_PASS"),
		RedisAddr: envOr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   int(envInt64("REDIS_DB", 0)),
		NatsURL:   os.Getenv("NATS_URL"),
		UploadDir: envOr("UPLOAD_DIR", "uploads"),
	}
}

// GetJwtSecret returns the process-wide token signing key. The fixed fallback
// is a known weakness carried over from the original deployment; set
// JWT_SECRET in any real environment.
func GetJwtSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("fallback-secret")
}

// JwtOptions is the token codec configuration shared by the request gate,
// the auth handlers and the relay handshake.
func JwtOptions() security.Options {
	return security.DefaultOptions(GetJwtSecret())
}

func ConfigIds() {
	ids.SetNodeID(Global.NodeID)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logger.Warnf("config: bad %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
