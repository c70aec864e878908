package models

// Actor инициатор операции синхронизации. Передается явно в каждый вызов
type Actor struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // user, service, system
}

const (
	ActorKindUser    = "user"
	ActorKindService = "service"
	ActorKindSystem  = "system"
)

// SystemActor актор для фоновых запусков (планировщик, вебхуки)
func SystemActor(name string) Actor {
	return Actor{ID: name, Kind: ActorKindSystem}
}

func (a Actor) String() string {
	if a.ID == "" {
		return "anonymous"
	}
	return a.Kind + ":" + a.ID
}
