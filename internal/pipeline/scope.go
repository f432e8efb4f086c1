package pipeline

// Scoped конвейер, ограниченный данными одного пользователя.
// Создаётся только через Scope; хранилище выполняет только Scoped.
// Фильтр владельца Compile ставит во внутренний запрос, до всех стадий LLM.
type Scoped struct {
	owner  string
	stages []Stage
}

// Scope безусловно привязывает стадии, полученные от LLM, к владельцу.
// Фильтры по userId внутри untrusted могут только сузить выборку.
func Scope(untrusted Parsed, userID string) Scoped {
	stages := make([]Stage, len(untrusted.Stages))
	copy(stages, untrusted.Stages)
	return Scoped{owner: userID, stages: stages}
}

// Owner идентификатор пользователя, которым ограничен конвейер.
func (s Scoped) Owner() string {
	return s.owner
}

// Len число стадий, полученных от LLM.
func (s Scoped) Len() int {
	return len(s.stages)
}
