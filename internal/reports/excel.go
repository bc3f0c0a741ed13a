// internal/reports/excel.go
// Package reports собирает Excel-отчеты по леджеру и оплаченным заказам.
package reports

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/xuri/excelize/v2"

	"metalhead/internal/db"
)

// BuildLedgerReport собирает Excel-книгу с записями леджера за период.
// Вызывающая сторона отвечает за запись книги в ответ и её закрытие.
func BuildLedgerReport(startDate, endDate time.Time) (*excelize.File, error) {
	rows, err := db.GetLedgerForExcel(startDate, endDate)
	if err != nil {
		log.Printf("BuildLedgerReport: ошибка получения данных леджера: %v", err)
		return nil, err
	}
	defer rows.Close()

	f := excelize.NewFile()
	sheetName := "Леджер"
	index, _ := f.NewSheet(sheetName)
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := []string{"ID", "ID Заказа", "Тип", "Сумма", "Статус", "Референс", "Имя", "Фамилия", "Дата"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	rowIndex := 2
	for rows.Next() {
		var id, jobID int64
		var txType, status, reference, firstName, lastName string
		var amount float64
		var createdAt time.Time

		// Порядок сканирования должен соответствовать SELECT в db.GetLedgerForExcel()
		if errScan := rows.Scan(&id, &jobID, &txType, &amount, &status, &reference, &firstName, &lastName, &createdAt); errScan != nil {
			log.Printf("BuildLedgerReport: ошибка сканирования строки леджера: %v", errScan)
			continue
		}

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowIndex), id)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowIndex), jobID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowIndex), txType)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowIndex), amount)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowIndex), status)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowIndex), reference)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowIndex), firstName)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowIndex), lastName)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", rowIndex), createdAt.Format("02.01.2006 15:04"))
		rowIndex++
	}
	if err = rows.Err(); err != nil {
		log.Printf("BuildLedgerReport: ошибка после итерации по леджеру: %v", err)
		return nil, err
	}

	return f, nil
}

// BuildPaidJobsReport собирает Excel-книгу по оплаченным заказам за период.
func BuildPaidJobsReport(startDate, endDate time.Time) (*excelize.File, error) {
	rows, err := db.GetPaidJobsForExcel(startDate, endDate)
	if err != nil {
		log.Printf("BuildPaidJobsReport: ошибка получения данных по оплаченным заказам: %v", err)
		return nil, err
	}
	defer rows.Close()

	f := excelize.NewFile()
	sheetName := "Оплаченные заказы"
	index, _ := f.NewSheet(sheetName)
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := []string{"ID Заказа", "Постер Имя", "Постер Фамилия", "Исполнитель Имя", "Исполнитель Фамилия", "Тип оплаты", "Итоговая цена", "Выполнен", "Оплачен"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	rowIndex := 2
	for rows.Next() {
		var id int64
		var posterFirst, posterLast, paymentType string
		var helperFirst, helperLast sql.NullString
		var finalPrice sql.NullFloat64
		var completedAt, paidAt sql.NullTime

		// Порядок сканирования должен соответствовать SELECT в db.GetPaidJobsForExcel()
		if errScan := rows.Scan(&id, &posterFirst, &posterLast, &helperFirst, &helperLast, &paymentType, &finalPrice, &completedAt, &paidAt); errScan != nil {
			log.Printf("BuildPaidJobsReport: ошибка сканирования строки заказа: %v", errScan)
			continue
		}

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowIndex), id)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowIndex), posterFirst)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowIndex), posterLast)
		if helperFirst.Valid {
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowIndex), helperFirst.String)
		}
		if helperLast.Valid {
			f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowIndex), helperLast.String)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowIndex), paymentType)
		if finalPrice.Valid {
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowIndex), finalPrice.Float64)
		} else {
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowIndex), 0.0)
		}
		if completedAt.Valid {
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowIndex), completedAt.Time.Format("02.01.2006 15:04"))
		}
		if paidAt.Valid {
			f.SetCellValue(sheetName, fmt.Sprintf("I%d", rowIndex), paidAt.Time.Format("02.01.2006 15:04"))
		}
		rowIndex++
	}
	if err = rows.Err(); err != nil {
		log.Printf("BuildPaidJobsReport: ошибка после итерации по заказам: %v", err)
		return nil, err
	}

	return f, nil
}
