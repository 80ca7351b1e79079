package domain

import "time"

// Gender описывает пол участника.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = ""
)

// SubmissionStatus описывает статус читательской записи.
type SubmissionStatus string

const (
	SubmissionDraft    SubmissionStatus = "draft"
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// MatchingVersion описывает стратегию дневного матчинга.
type MatchingVersion string

const (
	// MatchingVersionRandom — случайная раздача с балансом полов.
	MatchingVersionRandom MatchingVersion = "random"
	// MatchingVersionCluster — кластеризация внешним классификатором.
	MatchingVersionCluster MatchingVersion = "cluster"
)

// Participant — участник когорты.
type Participant struct {
	ID                string
	CohortID          string
	Name              string
	Gender            Gender
	ParticipationCode string
	IsSuperAdmin      bool
	IsAdministrator   bool
	IsGhost           bool
	// SubmissionCount — число уникальных дат одобренных записей
	// текущего цикла участия. Вычисляется на каждом запуске, не хранится.
	SubmissionCount int
}

// ExpectedCode возвращает код участия, по которому засчитываются записи.
// У старых участников код не заполнен, тогда используется сам ID.
func (p Participant) ExpectedCode() string {
	if p.ParticipationCode != "" {
		return p.ParticipationCode
	}
	return p.ID
}

// Submission — читательская запись участника за один день.
type Submission struct {
	ID                int64
	ParticipantID     string
	CohortID          string
	ParticipationCode string
	SubmissionDate    string
	Status            SubmissionStatus
	BookTitle         string
	BookAuthor        string
	Review            string
	DailyQuestion     string
	DailyAnswer       string
	SubmittedAt       time.Time
}

// Cohort — набор участников одного потока клуба.
type Cohort struct {
	ID                string
	Name              string
	IsActive          bool
	MatchingVersion   MatchingVersion
	EndDate           string
	ProfileUnlockDate string
}

// Assignment — список профилей, показанных одному зрителю за день.
type Assignment struct {
	Assigned  []string `json:"assigned,omitempty"`
	ClusterID string   `json:"clusterId,omitempty"`
	// Легаси-формат v1.0 хранил два списка вместо одного.
	Similar  []string `json:"similar,omitempty"`
	Opposite []string `json:"opposite,omitempty"`
}

// AssignedIDs нормализует легаси-формат в единый список ID.
func (a Assignment) AssignedIDs() []string {
	if len(a.Assigned) > 0 {
		return a.Assigned
	}
	if len(a.Similar) == 0 && len(a.Opposite) == 0 {
		return nil
	}
	out := make([]string, 0, len(a.Similar)+len(a.Opposite))
	out = append(out, a.Similar...)
	out = append(out, a.Opposite...)
	return out
}

// Cluster — тематическая группа поставщиков одного дня.
type Cluster struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Emoji     string   `json:"emoji,omitempty"`
	Category  string   `json:"category,omitempty"`
	Theme     string   `json:"theme,omitempty"`
	MemberIDs []string `json:"memberIds"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// MatchingEntry — зафиксированный результат матчинга за (когорта, дата).
// Создаётся ровно один раз; перезапись возможна только через явный
// административный перезапуск, который сперва удаляет запись.
type MatchingEntry struct {
	Version     MatchingVersion       `json:"matchingVersion"`
	Assignments map[string]Assignment `json:"assignments"`
	Clusters    map[string]Cluster    `json:"clusters,omitempty"`
}

// ParticipantRef — короткая ссылка на участника для отчётов.
type ParticipantRef struct {
	ID   string
	Name string
}

// Roster — участники одного запуска матчинга.
type Roster struct {
	// Providers — участники с не-черновой записью за целевую дату.
	Providers []Participant
	// Viewers — все участники когорты кроме администраторов.
	// Гост-аккаунты остаются зрителями, но никогда не кластеризуются.
	Viewers []Participant
	// NotSubmitted — зрители без записи за целевую дату.
	NotSubmitted []ParticipantRef
	// RecentAssignments — кому что показывали за скользящее окно.
	RecentAssignments map[string][]string
}

// DailySubmission — вход кластеризации: только текст этого дня.
// Название и автор книги намеренно не передаются классификатору:
// книгу читают много дней подряд, и она не различает участников.
type DailySubmission struct {
	ParticipantID   string
	ParticipantName string
	Gender          Gender
	Review          string
	DailyAnswer     string
}

// MatchInput — общий вход обеих стратегий.
type MatchInput struct {
	CohortID string
	Date     string
	Roster   Roster
	// Submissions заполняется только для кластерной стратегии.
	Submissions []DailySubmission
	// RecentCategories — категории кластеров предыдущих трёх дней,
	// чтобы классификатор выбирал другую ось сходства.
	RecentCategories []string
}
