// Package config provides centralized configuration management for the
// pipeline review service.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern REVIEW_<SECTION>_<FIELD>:
//
//	REVIEW_SERVER_PORT=8080
//	REVIEW_DATA_DIR=/srv/pipeline
//	REVIEW_DATA_SUMMARY_FILE=Company_Pipeline_Summary.csv
//	REVIEW_LOGGING_LEVEL=debug
//	REVIEW_TELEMETRY_TRACE_EXPORTER=stdout
//
// REVIEW_CONFIG_FILE points at an explicit YAML file; otherwise config.yaml and
// configs/config.yaml are searched.
package config
