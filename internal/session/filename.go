package session

import (
	"fmt"
	"path/filepath"
	"strings"
)

var reservedDeviceNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

const illegalChars = `<>:"/\|?*`

var knownContainerExtensions = map[string]bool{
	".avi": true, ".mp4": true, ".mov": true, ".mkv": true,
}

// ValidateFilename applies startmovie's filename rule: non-empty, free of
// reserved Windows device names and illegal characters, ending in a known
// container extension.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("filename is empty")
	}

	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if reservedDeviceNames[strings.ToLower(stem)] {
		return fmt.Errorf("filename %q uses a reserved device name", name)
	}

	if strings.ContainsAny(name, illegalChars) {
		return fmt.Errorf("filename %q contains an illegal character (one of %s)", name, illegalChars)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !knownContainerExtensions[ext] {
		return fmt.Errorf("filename %q has an unknown or missing container extension (want one of .avi/.mp4/.mov/.mkv)", name)
	}

	return nil
}
