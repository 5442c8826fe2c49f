//go:build !windows

package systray

import _ "embed"

//go:embed icon.png
var iconData []byte
