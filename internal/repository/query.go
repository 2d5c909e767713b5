package repository

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxPageSize = 200

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// scopeMerchant 所有查询都必须带上商户条件
func scopeMerchant(db *gorm.DB, merchantID string) *gorm.DB {
	return db.Where("merchant_id = ?", strings.TrimSpace(merchantID))
}

// forUpdate 行级锁；sqlite 方言会忽略该子句，依靠单写者串行化
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// applyPagination pageSize<=0 表示不分页，超过上限按上限截断
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	pageSize = min(pageSize, maxPageSize)
	page = max(page, 1)
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

// searchColumns 任一列模糊匹配 term，postgres 下不区分大小写
func searchColumns(query *gorm.DB, term string, columns ...string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return query
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"
	op := likeOperator(query)
	clauses := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, column := range columns {
		clauses = append(clauses, column+" "+op+` ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return query.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

func likeOperator(db *gorm.DB) string {
	if db != nil && db.Dialector != nil {
		switch strings.ToLower(db.Dialector.Name()) {
		case "postgres", "postgresql":
			return "ILIKE"
		}
	}
	return "LIKE"
}
