// Package config provides configuration parsing for wt-tracker.
//
// The configuration is stored in wt-tracker.json. This package handles
// loading, saving and validating it, and converts it into the settings the
// server and tracker packages take.
//
// # Configuration File Structure
//
//	{
//	  "servers": [
//	    {
//	      "server": {"host": "0.0.0.0", "port": 8000},
//	      "websockets": {
//	        "path": "/",
//	        "maxPayloadLength": 65536,
//	        "idleTimeout": 240,
//	        "compression": "enabled",
//	        "compressionLevel": 3,
//	        "maxConnections": 0
//	      }
//	    },
//	    {
//	      "server": {
//	        "port": 8443,
//	        "key_file_name": "key.pem",
//	        "cert_file_name": "cert.pem"
//	      }
//	    }
//	  ],
//	  "tracker": {"maxOffers": 20, "announceInterval": 120},
//	  "websocketsAccess": {"allowOrigins": ["https://example.com"]},
//	  "debug": {"verbose": false},
//	  "metrics": {"enabled": true, "path": "/metrics"},
//	  "stats": {"enabled": true, "path": "/stats.json"}
//	}
//
// Durations are whole seconds. Omitted numeric fields take their defaults.
//
// # Usage
//
//	cfg, err := config.LoadFile("wt-tracker.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, sc := range cfg.ServerConfigs() {
//	    fmt.Println("listening on", sc.Addr())
//	}
package config
