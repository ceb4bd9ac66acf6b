package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/internal/domain/entity"
	"github.com/oficinapro/fiscal-api/internal/domain/repository"
)

var _ repository.FiscalNoteRepository = (*FiscalNoteRepo)(nil)

// FiscalNoteRepo persistência da nota fiscal (usável com pool ou tx).
type FiscalNoteRepo struct {
	q Querier
}

func NewFiscalNoteRepository(q Querier) *FiscalNoteRepo {
	return &FiscalNoteRepo{q: q}
}

const noteColumns = `
	id, kind, status, order_id, client_id,
	numero, serie, ambiente,
	chave_acesso, protocolo, recibo,
	xml_assinado, retorno_provedor, itens_json, pdf,
	valor_total, c_stat, motivo, erro_detalhe,
	created_at, updated_at`

// Create persiste a nota. Violação do índice único parcial de ordem
// autorizada vira domain.ErrDuplicate (guarda de idempotência do webhook).
func (r *FiscalNoteRepo) Create(ctx context.Context, note *entity.FiscalNote) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_notes (` + noteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, now(), now())`
	_, err := r.q.Exec(ctx, query,
		note.ID, note.Kind, note.Status, note.OrderID, note.ClientID,
		note.Numero, note.Serie, note.Ambiente,
		nullIfEmpty(note.ChaveAcesso), nullIfEmpty(note.Protocolo), nullIfEmpty(note.Recibo),
		nullIfEmpty(note.XMLAssinado), nullIfEmpty(note.RetornoProvedor), nullIfEmpty(note.ItensJSON), note.PDF,
		note.ValorTotal, note.CStat, nullIfEmpty(note.Motivo), nullIfEmpty(note.ErroDetalhe),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert fiscal note: %w", err)
	}
	return nil
}

// Update grava o estado corrente da nota inteira. O chamador é o dono da
// máquina de estados; aqui não há validação de transição.
func (r *FiscalNoteRepo) Update(ctx context.Context, note *entity.FiscalNote) error {
	query := `
		UPDATE fiscal_notes
		SET status = $2,
		    chave_acesso = COALESCE($3, chave_acesso),
		    protocolo = COALESCE($4, protocolo),
		    recibo = $5,
		    xml_assinado = COALESCE($6, xml_assinado),
		    retorno_provedor = COALESCE($7, retorno_provedor),
		    pdf = COALESCE($8, pdf),
		    c_stat = $9,
		    motivo = COALESCE($10, motivo),
		    erro_detalhe = $11,
		    updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		note.ID, note.Status,
		nullIfEmpty(note.ChaveAcesso), nullIfEmpty(note.Protocolo), nullIfEmpty(note.Recibo),
		nullIfEmpty(note.XMLAssinado), nullIfEmpty(note.RetornoProvedor), note.PDF,
		note.CStat, nullIfEmpty(note.Motivo), nullIfEmpty(note.ErroDetalhe),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update fiscal note: %w", err)
	}
	return nil
}

// GetByID devolve a nota completa ou domain.ErrNotFound.
func (r *FiscalNoteRepo) GetByID(ctx context.Context, id string) (*entity.FiscalNote, error) {
	query := `SELECT ` + noteColumns + ` FROM fiscal_notes WHERE id = $1`
	note, err := r.scanOne(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get fiscal note: %w", err)
	}
	return note, nil
}

// GetAuthorizedByOrderID devolve a nota AUTHORIZED da ordem, ou nil se não
// existir. Consulta leve usada pelo webhook antes de emitir.
func (r *FiscalNoteRepo) GetAuthorizedByOrderID(ctx context.Context, orderID string) (*entity.FiscalNote, error) {
	query := `SELECT ` + noteColumns + ` FROM fiscal_notes WHERE order_id = $1 AND status = $2`
	note, err := r.scanOne(r.q.QueryRow(ctx, query, orderID, entity.StatusAuthorized))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get authorized note by order: %w", err)
	}
	return note, nil
}

// List devolve as notas do tipo, mais recentes primeiro, com paginação.
// kind vazio lista todos os tipos.
func (r *FiscalNoteRepo) List(ctx context.Context, kind string, limit, offset int) ([]*entity.FiscalNote, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM fiscal_notes
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fiscal notes: %w", err)
	}
	defer rows.Close()
	var list []*entity.FiscalNote
	for rows.Next() {
		note, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal note: %w", err)
		}
		list = append(list, note)
	}
	return list, rows.Err()
}

// NextNumber consome o próximo número do sequencial do tipo via
// upsert-returning. O incremento acontece na mesma instrução, então duas
// emissões concorrentes nunca recebem o mesmo número; números de notas
// depois rejeitadas não são reutilizados.
func (r *FiscalNoteRepo) NextNumber(ctx context.Context, kind string) (int64, error) {
	query := `
		INSERT INTO fiscal_note_sequences (kind, last_number)
		VALUES ($1, 1)
		ON CONFLICT (kind)
		DO UPDATE SET last_number = fiscal_note_sequences.last_number + 1
		RETURNING last_number`
	var n int64
	if err := r.q.QueryRow(ctx, query, kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("next note number: %w", err)
	}
	return n, nil
}

func (r *FiscalNoteRepo) scanOne(row pgx.Row) (*entity.FiscalNote, error) {
	var n entity.FiscalNote
	var chave, protocolo, recibo, xmlAssinado, retorno, itens, motivo, erro *string
	err := row.Scan(
		&n.ID, &n.Kind, &n.Status, &n.OrderID, &n.ClientID,
		&n.Numero, &n.Serie, &n.Ambiente,
		&chave, &protocolo, &recibo,
		&xmlAssinado, &retorno, &itens, &n.PDF,
		&n.ValorTotal, &n.CStat, &motivo, &erro,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.ChaveAcesso = derefStr(chave)
	n.Protocolo = derefStr(protocolo)
	n.Recibo = derefStr(recibo)
	n.XMLAssinado = derefStr(xmlAssinado)
	n.RetornoProvedor = derefStr(retorno)
	n.ItensJSON = derefStr(itens)
	n.Motivo = derefStr(motivo)
	n.ErroDetalhe = derefStr(erro)
	return &n, nil
}
