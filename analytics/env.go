package analytics

import "os"

// FromEnv builds a server-variant Config from the environment variables
// the Next.js wrapper consumes: BA_SITE / NEXT_PUBLIC_BA_SITE,
// BA_URL / NEXT_PUBLIC_BA_URL, BA_API_KEY and BA_DEBUG. The BA_ form
// wins when both are set.
func FromEnv() Config {
	debug := os.Getenv("BA_DEBUG")
	return Config{
		Site:     firstEnv("BA_SITE", "NEXT_PUBLIC_BA_SITE"),
		Endpoint: firstEnv("BA_URL", "NEXT_PUBLIC_BA_URL"),
		APIKey:   os.Getenv("BA_API_KEY"),
		Debug:    debug == "1" || debug == "true",
		Server:   true,
		Runtime: RuntimeDescriptor{
			Env:     envLabel(),
			Runtime: "go",
		},
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func envLabel() string {
	switch os.Getenv("GO_ENV") {
	case EnvDevelopment:
		return EnvDevelopment
	case EnvTest:
		return EnvTest
	default:
		return EnvProduction
	}
}
