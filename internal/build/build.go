package build

import "strings"

var (
	Version = "dev"
	AppName = "paperdag"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
