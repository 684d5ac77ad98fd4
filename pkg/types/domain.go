package types

// Model is the public view of a configured model.
type Model struct {
	// Unique routing name.
	// example: small
	Name string `json:"name" example:"small"`
	// Path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Loopback port of the model's worker.
	// example: 9001
	Port int `json:"port" example:"9001"`
}
