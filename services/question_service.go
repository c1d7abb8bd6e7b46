package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wtfashwin/Quiz-App/config"
	"github.com/wtfashwin/Quiz-App/models"
	"github.com/wtfashwin/Quiz-App/persistence"
)

const DefaultSetName = "default"

var ErrUnknownQuestionSet = errors.New("unknown question set")

// BuiltinQuestionSet is the set used when no other source is configured.
func BuiltinQuestionSet() models.QuestionSet {
	set, err := models.NewQuestionSet(DefaultSetName, []models.Question{
		{
			Prompt:       "What is Python?",
			Options:      []string{"A programming language", "A snake", "A text editor", "An operating system"},
			CorrectIndex: 0,
		},
		{
			Prompt:       "Which of these is not a Python data type?",
			Options:      []string{"Integer", "Float", "String", "Character"},
			CorrectIndex: 3,
		},
		{
			Prompt:       "What is the result of 2 ** 3 in Python?",
			Options:      []string{"6", "8", "5", "9"},
			CorrectIndex: 1,
		},
	})
	if err != nil {
		panic(err)
	}
	return set
}

type questionFile struct {
	Sets []struct {
		Name      string            `yaml:"name"`
		Questions []models.Question `yaml:"questions"`
	} `yaml:"sets"`
}

// ParseQuestionFile reads question sets from YAML:
//
//	sets:
//	  - name: default
//	    questions:
//	      - question: What is Python?
//	        options: [A programming language, A snake]
//	        correct_answer: 0
func ParseQuestionFile(r io.Reader) (map[string]models.QuestionSet, error) {
	var f questionFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode question file: %w", err)
	}

	sets := make(map[string]models.QuestionSet, len(f.Sets))
	for _, s := range f.Sets {
		if s.Name == "" {
			return nil, errors.New("question set without a name")
		}
		if _, dup := sets[s.Name]; dup {
			return nil, fmt.Errorf("question set %q defined twice", s.Name)
		}
		set, err := models.NewQuestionSet(s.Name, s.Questions)
		if err != nil {
			return nil, fmt.Errorf("question set %q: %w", s.Name, err)
		}
		sets[s.Name] = set
	}
	return sets, nil
}

// LoadQuestionFile opens and parses a YAML question file.
func LoadQuestionFile(path string) (map[string]models.QuestionSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseQuestionFile(f)
}

// QuestionService supplies the question set for a new room.
type QuestionService struct {
	source     string
	defaultSet string
	sets       map[string]models.QuestionSet
	db         persistence.Database
}

func NewQuestionService(cfg config.QuestionsConfig, db persistence.Database) (*QuestionService, error) {
	s := &QuestionService{
		source:     cfg.Source,
		defaultSet: cfg.Set,
		db:         db,
	}
	if s.defaultSet == "" {
		s.defaultSet = DefaultSetName
	}

	switch cfg.Source {
	case "", "builtin":
		s.source = "builtin"
		builtin := BuiltinQuestionSet()
		s.sets = map[string]models.QuestionSet{builtin.Name(): builtin}
		if s.defaultSet != builtin.Name() {
			s.sets[s.defaultSet] = builtin
		}
	case "file":
		sets, err := LoadQuestionFile(cfg.File)
		if err != nil {
			return nil, err
		}
		s.sets = sets
	case "database":
		if db == nil {
			return nil, errors.New("question source database needs a database")
		}
	default:
		return nil, fmt.Errorf("unknown question source %q", cfg.Source)
	}
	return s, nil
}

// Resolve returns the named set, or the configured default when name is
// empty.
func (s *QuestionService) Resolve(ctx context.Context, name string) (models.QuestionSet, error) {
	if name == "" {
		name = s.defaultSet
	}

	if s.source == "database" {
		set, err := s.db.LoadQuestionSet(ctx, name)
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return models.QuestionSet{}, fmt.Errorf("%w: %s", ErrUnknownQuestionSet, name)
		}
		return set, err
	}

	set, ok := s.sets[name]
	if !ok {
		return models.QuestionSet{}, fmt.Errorf("%w: %s", ErrUnknownQuestionSet, name)
	}
	return set, nil
}
