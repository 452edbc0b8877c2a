// Package static embeds the assets served under /static/.
package static

import "embed"

//go:embed assets/*
var Assets embed.FS
