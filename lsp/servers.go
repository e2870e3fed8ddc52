package lsp

import (
	"path/filepath"
	"strings"
)

// ServerConfig is the command line of a language server.
type ServerConfig struct {
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// DefaultServers returns built-in language server mappings.
func DefaultServers() map[string]ServerConfig {
	return map[string]ServerConfig{
		"go":         {Command: "gopls"},
		"typescript": {Command: "typescript-language-server", Args: []string{"--stdio"}},
		"javascript": {Command: "typescript-language-server", Args: []string{"--stdio"}},
		"python":     {Command: "pyright-langserver", Args: []string{"--stdio"}},
		"rust":       {Command: "rust-analyzer"},
		"c":          {Command: "clangd"},
		"cpp":        {Command: "clangd"},
		"java":       {Command: "jdtls"},
		"lua":        {Command: "lua-language-server"},
		"json":       {Command: "vscode-json-language-server", Args: []string{"--stdio"}},
		"yaml":       {Command: "yaml-language-server", Args: []string{"--stdio"}},
	}
}

var extLanguages = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".py":   "python",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".java": "java",
	".lua":  "lua",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
}

// LanguageID infers a language id from a file name, or "" when unknown.
func LanguageID(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}
