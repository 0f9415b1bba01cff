package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 50*time.Millisecond, cfg.Worker.PollInterval.Std())
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "shikijin.yaml", `
logger:
  type: json
  level: debug
worker:
  name: w1
  capabilities: [gpu, image]
  concurrency: 4
  poll_interval: 10ms
store:
  type: redis
  lease_ttl: 30s
  redis:
    addr: redis:6379
    namespace: prod
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "json", cfg.Logger.Type)
	require.Equal(t, "shikijin", cfg.Logger.Name, "unset fields keep defaults")
	require.Equal(t, "w1", cfg.Worker.Name)
	require.Equal(t, []string{"gpu", "image"}, cfg.Worker.Capabilities)
	require.Equal(t, 4, cfg.Worker.Concurrency)
	require.Equal(t, Duration(10*time.Millisecond), cfg.Worker.PollInterval)
	require.Equal(t, Duration(200*time.Millisecond), cfg.Worker.ReclaimInterval)
	require.Equal(t, "redis", cfg.Store.Type)
	require.Equal(t, Duration(30*time.Second), cfg.Store.LeaseTTL)
	require.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	require.Equal(t, "prod", cfg.Store.Redis.Namespace)
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, "shikijin.toml", `
[logger]
type = "fmt"
file_path = "/tmp/shikijin.log"

[worker]
name = "w2"
capabilities = ["cpu"]
reclaim_interval = "1s"

[store]
type = "memory"
lease_ttl = "0s"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "fmt", cfg.Logger.Type)
	require.Equal(t, "/tmp/shikijin.log", cfg.Logger.FilePath)
	require.Equal(t, "w2", cfg.Worker.Name)
	require.Equal(t, []string{"cpu"}, cfg.Worker.Capabilities)
	require.Equal(t, Duration(time.Second), cfg.Worker.ReclaimInterval)
	require.Zero(t, cfg.Store.LeaseTTL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "cfg.json", `{}`))
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, "bad.yaml", "worker: [unclosed"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "bad.toml", "[worker]\npoll_interval = \"soon\"\n"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeFile(t, "c.yaml", "worker:\n  name: from-file\n")
	t.Setenv("SHIKIJIN_WORKER__NAME", "from-env")
	t.Setenv("SHIKIJIN_WORKER__CAPABILITIES", "gpu, ,image")
	t.Setenv("SHIKIJIN_WORKER__CONCURRENCY", "3")
	t.Setenv("SHIKIJIN_STORE__TYPE", "redis")
	t.Setenv("SHIKIJIN_STORE__REDIS__DB", "2")
	t.Setenv("SHIKIJIN_STORE__LEASE_TTL", "1m")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Worker.Name)
	require.Equal(t, []string{"gpu", "image"}, cfg.Worker.Capabilities)
	require.Equal(t, 3, cfg.Worker.Concurrency)
	require.Equal(t, "redis", cfg.Store.Type)
	require.Equal(t, 2, cfg.Store.Redis.DB)
	require.Equal(t, Duration(time.Minute), cfg.Store.LeaseTTL)
}

func TestApplyEnv_BadValue(t *testing.T) {
	cfg := Default()
	env := map[string]string{"SHIKIJIN_WORKER__CONCURRENCY": "many"}
	err := cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Logger.Type = "xml"
	cfg.Worker.Type = "fancy"
	cfg.Worker.Concurrency = 0
	cfg.Store.Type = "sqlite"
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, s := range []string{"logger.type", "worker.type", "worker.concurrency", "store.type"} {
		require.Contains(t, err.Error(), s)
	}

	cfg = Default()
	cfg.Store.Type = "redis"
	cfg.Store.Redis.Addr = ""
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 1500ms ")))
	require.Equal(t, 1500*time.Millisecond, d.Std())
	b, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1.5s", string(b))
	require.Error(t, d.UnmarshalText([]byte("later")))
}

func TestSplitList(t *testing.T) {
	require.Nil(t, SplitList(""))
	require.Equal(t, []string{"a", "b"}, SplitList(" a ,, b,"))
}
