package config

// 构建时通过 -ldflags "-X github.com/anoixa/grammable/config.Version=release" 注入
var (
	Version    string = "dev"
	CommitHash string = ""
)

// IsProduction 生产环境：Version 为 "release" 且 CommitHash 不为空
func IsProduction() bool {
	return Version == "release" && CommitHash != ""
}

// IsDevelopment 判断是否为开发环境
func IsDevelopment() bool {
	return !IsProduction()
}
