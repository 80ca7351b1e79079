package clusterer

import (
	"fmt"
	"strings"
	"time"

	"bookclub-matching/internal/domain"
)

const systemPrompt = "Ты модератор читательского клуба. Твоя задача — разбить " +
	"сегодняшних читателей на небольшие группы по сходству их заметок. " +
	"Опирайся только на присланные тексты и не придумывай участников."

// focusAxes — оси сходства, между которыми ротация по дню месяца,
// чтобы группировка не повторяла один и тот же признак изо дня в день.
var focusAxes = []string{
	"системы ценностей и жизненные приоритеты, которые проявляются в заметках",
	"эмоциональный тон и настроение текстов",
	"интересы, темы и сферы жизни, о которых пишут участники",
}

// FocusAxis возвращает ось сходства для даты (ротация по дню месяца).
func FocusAxis(date string) string {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return focusAxes[0]
	}
	return focusAxes[t.Day()%len(focusAxes)]
}

func buildUserPrompt(req domain.ClusterRequest, submissionsJSON string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Раздели %d читателей на группы по сходству их сегодняшних заметок.\n\n", req.Plan.ProviderCount)

	if req.Plan.EdgeCase {
		b.WriteString("Требование к разбиению: ровно 2 группы, в каждой не меньше 4 человек.\n")
	} else {
		fmt.Fprintf(&b, "Требование к разбиению: примерно %d групп по %d-%d человек (допустимо на одну группу больше или меньше), ни одна группа не больше %d человек.\n",
			req.Plan.TargetCount, domain.ClusterMinSize, domain.ClusterMaxSize, domain.ClusterMaxSize)
	}
	b.WriteString("Каждый участник должен попасть ровно в одну группу: никого не пропускай и никого не дублируй.\n\n")

	fmt.Fprintf(&b, "Главная ось сходства сегодня: %s.\n", FocusAxis(req.Date))
	if len(req.RecentCategories) > 0 {
		fmt.Fprintf(&b, "В предыдущие дни уже использовались категории: %s. Выбери другой признак группировки, чтобы подборки не повторялись.\n",
			strings.Join(req.RecentCategories, ", "))
	}

	b.WriteString(`
Для каждой группы укажи:
- "name": короткое название группы (2-4 слова);
- "emoji": один подходящий эмодзи;
- "category": одно слово-категория признака группировки;
- "theme": одно предложение, что объединяет группу;
- "member_ids": идентификаторы "id" участников из входных данных;
- "reasoning": одно-два предложения, почему участники собраны вместе.

Ответ верни строго в формате JSON: {"clusters": [{"name": "...", "emoji": "...", "category": "...", "theme": "...", "member_ids": [1, 2], "reasoning": "..."}]}.

Вот заметки участников в JSON:
`)
	b.WriteString(submissionsJSON)

	return b.String()
}
