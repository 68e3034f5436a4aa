//go:generate go run ./internal/tools/versiongen -manifest internal/chromebridge/extension/manifest.json
//go:generate go run ./internal/tools/bootstrapgen -o dist/bootstrap -force

package tabtidy
