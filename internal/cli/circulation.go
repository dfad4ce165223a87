package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/campuslib/campuslib/internal/domain"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
)

type borrowResult struct {
	Student string `json:"student"`
	ISBN    string `json:"isbn"`
	Fine    int    `json:"outstanding_fine"`
}

func (a *App) borrow(ctx context.Context, args []string) error {
	fs, p := a.flags("borrow", "")
	student := fs.String("student", "", "Student email")
	isbn := fs.String("isbn", "", "Item ISBN")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"student": *student, "isbn": *isbn}); err != nil {
		return err
	}

	ok, err := a.Borrows.BorrowItem(ctx, *student, *isbn)
	if err != nil {
		return err
	}
	if !ok {
		return &domainerrors.Error{
			Code:    domainerrors.CodeOutOfStock,
			Message: fmt.Sprintf("item %s was not lent: no copy left, already on loan to this student, or storage unavailable", *isbn),
		}
	}

	res := borrowResult{Student: domain.NormalizeEmail(*student), ISBN: *isbn}
	return p.result(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s borrowed %s\n", res.Student, res.ISBN)
	})
}

func (a *App) returnItem(ctx context.Context, args []string) error {
	fs, p := a.flags("return", "")
	student := fs.String("student", "", "Student email")
	isbn := fs.String("isbn", "", "Item ISBN")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"student": *student, "isbn": *isbn}); err != nil {
		return err
	}

	ok, err := a.Borrows.ReturnItem(ctx, *student, *isbn)
	if err != nil {
		return err
	}
	if !ok {
		return domainerrors.Internal(fmt.Sprintf("return of %s was not recorded", *isbn))
	}

	res := borrowResult{
		Student: domain.NormalizeEmail(*student),
		ISBN:    *isbn,
		Fine:    a.Borrows.TotalFine(ctx, *student),
	}
	return p.result(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s returned %s\n", res.Student, res.ISBN)
		if res.Fine > 0 {
			fmt.Fprintf(w, "outstanding fine: %d\n", res.Fine)
		}
	})
}

type payResult struct {
	*domain.Payment
	Tendered    int `json:"tendered"`
	Outstanding int `json:"outstanding"`
}

func (a *App) pay(ctx context.Context, args []string) error {
	fs, p := a.flags("pay", "")
	student := fs.String("student", "", "Student email")
	amount := fs.Int("amount", 0, "Amount to pay")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"student": *student}); err != nil {
		return err
	}

	receipt, err := a.Borrows.PayFine(ctx, *student, *amount)
	if err != nil {
		return err
	}

	res := payResult{
		Payment:     receipt,
		Tendered:    *amount,
		Outstanding: a.Borrows.TotalFine(ctx, *student),
	}
	return p.result(res, func(w io.Writer) {
		if receipt.Amount == 0 {
			fmt.Fprintf(w, "%s owes nothing; no payment recorded\n", receipt.StudentEmail)
			return
		}
		fmt.Fprintf(w, "applied %d of %d (receipt %s)\n", receipt.Amount, *amount, receipt.ID)
		fmt.Fprintf(w, "outstanding fine: %d\n", res.Outstanding)
	})
}

type fineResult struct {
	Student string `json:"student"`
	Total   int    `json:"total"`
}

func (a *App) fine(ctx context.Context, args []string) error {
	fs, p := a.flags("fine", "")
	student := fs.String("student", "", "Student email")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"student": *student}); err != nil {
		return err
	}

	res := fineResult{
		Student: domain.NormalizeEmail(*student),
		Total:   a.Borrows.TotalFine(ctx, *student),
	}
	return p.result(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s owes %d\n", res.Student, res.Total)
	})
}

func (a *App) overdue(ctx context.Context, args []string) error {
	fs, p := a.flags("overdue", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	recs := a.Borrows.OverdueStudents(ctx)
	return p.result(recs, func(w io.Writer) {
		if len(recs) == 0 {
			fmt.Fprintln(w, "no overdue items")
			return
		}
		rows := make([][]string, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, []string{
				r.StudentEmail,
				r.ISBN,
				domain.FormatDate(r.BorrowDate),
				domain.FormatDate(r.DueDate),
			})
		}
		p.table([]string{"STUDENT", "ISBN", "BORROWED", "DUE"}, rows)(w)
	})
}

func (a *App) unpaid(ctx context.Context, args []string) error {
	fs, p := a.flags("unpaid", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	emails := a.Borrows.StudentsWithUnpaidFines(ctx)
	res := make([]fineResult, 0, len(emails))
	for _, email := range emails {
		res = append(res, fineResult{Student: email, Total: a.Borrows.TotalFine(ctx, email)})
	}

	return p.result(res, func(w io.Writer) {
		if len(res) == 0 {
			fmt.Fprintln(w, "no unpaid fines")
			return
		}
		rows := make([][]string, 0, len(res))
		for _, r := range res {
			rows = append(rows, []string{r.Student, strconv.Itoa(r.Total)})
		}
		p.table([]string{"STUDENT", "OWES"}, rows)(w)
	})
}

func (a *App) history(ctx context.Context, args []string) error {
	fs, p := a.flags("history", "")
	student := fs.String("student", "", "Student email")
	payments := fs.Bool("payments", false, "List payment receipts instead of borrows")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"student": *student}); err != nil {
		return err
	}

	if *payments {
		list, err := a.Borrows.PaymentHistory(ctx, *student)
		if err != nil {
			return err
		}
		return p.result(list, func(w io.Writer) {
			rows := make([][]string, 0, len(list))
			for _, pay := range list {
				rows = append(rows, []string{pay.ID, strconv.Itoa(pay.Amount), pay.PaidAt.Format("2006-01-02 15:04")})
			}
			p.table([]string{"RECEIPT", "AMOUNT", "PAID"}, rows)(w)
		})
	}

	recs, err := a.Borrows.History(ctx, *student)
	if err != nil {
		return err
	}
	return p.result(recs, func(w io.Writer) {
		rows := make([][]string, 0, len(recs))
		for _, r := range recs {
			status := "out"
			if r.Returned {
				status = "returned"
			}
			rows = append(rows, []string{
				strconv.FormatInt(r.ID, 10),
				r.ISBN,
				domain.FormatDate(r.BorrowDate),
				domain.FormatDate(r.DueDate),
				status,
				strconv.Itoa(r.Fine),
			})
		}
		p.table([]string{"ID", "ISBN", "BORROWED", "DUE", "STATUS", "FINE"}, rows)(w)
	})
}
