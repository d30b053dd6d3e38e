package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads extraction prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptSystem: `Você é um médico especialista em análise de documentos clínicos e criação de prontuários.
Responda sempre com um único objeto JSON válido, sem texto adicional.`,

	driven.PromptClinicalExtract: `Analise o documento clínico abaixo e extraia todos os eventos datados e todos os medicamentos mencionados.
Retorne um JSON com a seguinte estrutura:

{
  "events": [
    {
      "date": "data exatamente como aparece no texto",
      "title": "título resumido do evento",
      "description": "descrição breve",
      "notes": "texto formatado como prontuário médico profissional",
      "keywords": ["sintomas", "exames", "tópicos"],
      "excerpt": "trecho do documento de onde o evento foi lido",
      "confidence": 0.0
    }
  ],
  "medications": [
    {
      "name": "nome do medicamento",
      "active_ingredient": "princípio ativo",
      "dosage": "dosagem",
      "route": "via de administração",
      "start_date": "data de início como aparece no texto, ou vazio",
      "end_date": "data de término como aparece no texto, ou vazio",
      "notes": "observações",
      "excerpt": "trecho do documento",
      "confidence": 0.0
    }
  ],
  "lab_reports": [
    {
      "exam_date": "data do exame como aparece no texto",
      "lab_name": "nome do laboratório",
      "doctor_name": "nome do médico solicitante",
      "tests": [
        {
          "test_name": "nome do exame",
          "value": "valor numérico ou resultado",
          "unit": "unidade de medida",
          "reference_range": "faixa de referência"
        }
      ],
      "confidence": 0.0
    }
  ]
}

IMPORTANTE:
- Copie as datas exatamente como estão escritas; não invente datas
- Se um evento não tiver data identificável, deixe "date" vazio
- confidence é um número entre 0 e 1
- Identifique todos os medicamentos mencionados
- Resultados de exames laboratoriais vão em "lab_reports", com TODOS os exames encontrados
- Mantenha as unidades originais dos resultados

Documento:
%s`,

	driven.PromptMedicationExtract: `Analise a transcrição de áudio abaixo sobre medicamentos e extraia informações estruturadas.
Retorne um JSON com a mesma estrutura de "events" e "medications" usada para documentos clínicos:

{
  "events": [],
  "medications": [
    {
      "name": "nome do medicamento",
      "active_ingredient": "princípio ativo",
      "dosage": "dosagem",
      "route": "via de administração",
      "start_date": "data de início como falada, ou vazio",
      "end_date": "data de término como falada, ou vazio",
      "notes": "eficácia, efeitos colaterais e outras observações",
      "excerpt": "trecho da transcrição",
      "confidence": 0.0
    }
  ]
}

IMPORTANTE:
- Extraia TODOS os medicamentos mencionados
- Eventos clínicos datados mencionados no áudio vão em "events"
- Se não encontrar alguma informação, deixe o campo vazio

Transcrição:
%s`,

	driven.PromptIngredient: `Identifique o princípio ativo do medicamento abaixo. O nome pode ser comercial, genérico ou estar escrito com erros.
Retorne um JSON com a seguinte estrutura:

{
  "validated_name": "nome validado/corrigido do medicamento",
  "active_ingredient": "princípio ativo principal, em português",
  "is_valid": true
}

Se não reconhecer o medicamento, retorne "is_valid": false e deixe "active_ingredient" vazio.

Medicamento: %s`,

	driven.PromptCleanup: `Revise o texto clínico abaixo, corrigindo erros de transcrição e de OCR, pontuação e formatação.
Não acrescente nem remova informações clínicas. Retorne um JSON no formato {"text": "texto revisado"}.

Texto:
%s`,
}

// DefaultPrompt returns the embedded default for a prompt name.
func DefaultPrompt(name string) (string, bool) {
	prompt, ok := defaultPrompts[name]
	return prompt, ok
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.clinitrace/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".clinitrace", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	if err := checkPlaceholders(name, prompt); err != nil {
		return "", err
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// checkPlaceholders rejects edited templates that would misplace the
// document text. The system prompt takes no arguments.
func checkPlaceholders(name, prompt string) error {
	want := 1
	if name == driven.PromptSystem {
		want = 0
	}
	if got := strings.Count(prompt, "%s"); got != want {
		return fmt.Errorf("prompt %q: want %d %%s placeholder(s), found %d", name, want, got)
	}
	return nil
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# clinitrace Prompts

This directory contains the prompts sent to the extraction provider.

## Files

- ` + "`system.txt`" + ` - System prompt for every extraction call
- ` + "`clinical_extract.txt`" + ` - Events and medications from documents
- ` + "`medication_extract.txt`" + ` - Medications from audio transcripts
- ` + "`cleanup.txt`" + ` - Tidies OCR and transcription text for notes
- ` + "`ingredient.txt`" + ` - Maps a medication name to its active ingredient

## Customisation

Edit any file to change extraction behaviour. Changes take effect on the
next command. Delete a file to restore its default.

## Format Placeholders

Every prompt except system.txt must keep exactly one ` + "`%s`" + `, where the
document text, transcript or medication name is inserted. The JSON structure described in
the prompts is what the extractor parses; renaming its keys breaks
extraction.
`
	return os.WriteFile(path, []byte(content), 0600)
}
