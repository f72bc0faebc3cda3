package config

// DefaultConfigYAML is written by `caseanalyzer config init`.
const DefaultConfigYAML = `# caseanalyzer configuration
# Values not specified here use built-in defaults.
# Every key can be overridden with CASEANALYZER_<SECTION>_<KEY>.

log:
  level: info       # debug, info, warn, error
  format: auto      # auto, text, json
  # file: .caseanalyzer/caseanalyzer.log

backend:
  base_url: http://localhost:8000/api
  # token: set CASEANALYZER_BACKEND_TOKEN instead of storing it here
  request_timeout: 30s

analysis:
  # Fail a run when the stream stays silent this long. "0" disables it.
  idle_timeout: 5m
  event_buffer: 256

store:
  enabled: true
  path: .caseanalyzer/drafts.db
  # Writes that hit a locked database back off from retry_wait, doubling.
  busy_retries: 5
  retry_wait: 100ms

relay:
  host: 127.0.0.1
  port: 8090
  cors_origins:
    - http://localhost:5173
  heartbeat: 15s
`
