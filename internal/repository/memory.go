package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/bookstore/internal/domain"
)

// MemoryStore is an in-process Store with the same transactional behaviour
// as PostgresStore: a transaction works on a private copy of the data that
// replaces the shared copy only when fn succeeds. Transactions run one at a
// time, and waiting for a turn is bounded by the lock timeout.
//
// It backs the service tests and the dev server when no database is configured.
type MemoryStore struct {
	slot        chan struct{}
	lockTimeout time.Duration
	data        *memoryData
}

// NewMemoryStore returns an empty store seeded with the default order statuses.
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	s := &MemoryStore{
		slot:        make(chan struct{}, 1),
		lockTimeout: lockTimeout,
		data:        newMemoryData(),
	}
	for _, name := range DefaultOrderStatuses {
		s.data.statusSeq++
		s.data.statuses = append(s.data.statuses, OrderStatus{ID: int32(s.data.statusSeq), Name: name})
	}
	return s
}

// DefaultOrderStatuses matches the seed rows of the order_statuses migration.
var DefaultOrderStatuses = []string{
	domain.StatusPending,
	domain.StatusPaid,
	domain.StatusShipped,
	domain.StatusDelivered,
	domain.StatusCancelled,
	domain.StatusReturned,
}

func (s *MemoryStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	tx := &memoryTx{data: s.data.clone(), now: time.Now}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *MemoryStore) acquire(ctx context.Context) error {
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fmt.Errorf("%w: waited %s", domain.ErrStockContention, s.lockTimeout)
	}
}

func (s *MemoryStore) release() {
	<-s.slot
}

// =============================================================================
// Seeding (catalog and status tables are owned by other systems)
// =============================================================================

// AddBook inserts a book, creating its genre on first use, and returns its id.
func (s *MemoryStore) AddBook(ctx context.Context, title, author, genre string, price decimal.Decimal) (int64, error) {
	var id int64
	err := s.ExecTx(ctx, func(q Querier) error {
		d := q.(*memoryTx).data
		genreID, ok := d.genreByName[genre]
		if !ok {
			d.genreSeq++
			genreID = d.genreSeq
			d.genres[genreID] = Genre{ID: genreID, Name: genre}
			d.genreByName[genre] = genreID
		}
		d.bookSeq++
		id = d.bookSeq
		d.books[id] = Book{ID: id, Title: title, Author: author, Price: price, GenreID: genreID}
		return nil
	})
	return id, err
}

// SetBookPrice changes the catalog price of a book.
func (s *MemoryStore) SetBookPrice(ctx context.Context, bookID int64, price decimal.Decimal) error {
	return s.ExecTx(ctx, func(q Querier) error {
		d := q.(*memoryTx).data
		b, ok := d.books[bookID]
		if !ok {
			return pgx.ErrNoRows
		}
		b.Price = price
		d.books[bookID] = b
		return nil
	})
}

// RemoveOrderStatus deletes a status by name. Used to simulate a broken
// status table.
func (s *MemoryStore) RemoveOrderStatus(ctx context.Context, name string) error {
	return s.ExecTx(ctx, func(q Querier) error {
		d := q.(*memoryTx).data
		d.statuses = slices.DeleteFunc(d.statuses, func(st OrderStatus) bool { return st.Name == name })
		return nil
	})
}

// CountOrders returns the number of persisted orders.
func (s *MemoryStore) CountOrders(ctx context.Context) (int, error) {
	var n int
	err := s.ExecTx(ctx, func(q Querier) error {
		n = len(q.(*memoryTx).data.orders)
		return nil
	})
	return n, err
}

// ListJobs returns all jobs in insertion order.
func (s *MemoryStore) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := s.ExecTx(ctx, func(q Querier) error {
		d := q.(*memoryTx).data
		for _, id := range sortedKeys(d.jobs) {
			jobs = append(jobs, d.jobs[id])
		}
		return nil
	})
	return jobs, err
}

// =============================================================================
// Data
// =============================================================================

type memoryData struct {
	genres      map[int64]Genre
	genreByName map[string]int64
	books       map[int64]Book
	stock       map[int64]Stock // keyed by book id
	carts       map[int64]Cart
	cartByUser  map[string]int64
	cartLines   map[int64]CartLine
	statuses    []OrderStatus
	orders      map[int64]Order
	orderLines  map[int64]OrderLine
	jobs        map[int64]Job

	genreSeq, bookSeq, stockSeq, cartSeq, lineSeq int64
	statusSeq, orderSeq, orderLineSeq, jobSeq     int64
}

func newMemoryData() *memoryData {
	return &memoryData{
		genres:      map[int64]Genre{},
		genreByName: map[string]int64{},
		books:       map[int64]Book{},
		stock:       map[int64]Stock{},
		carts:       map[int64]Cart{},
		cartByUser:  map[string]int64{},
		cartLines:   map[int64]CartLine{},
		orders:      map[int64]Order{},
		orderLines:  map[int64]OrderLine{},
		jobs:        map[int64]Job{},
	}
}

func (d *memoryData) clone() *memoryData {
	c := *d
	c.genres = maps.Clone(d.genres)
	c.genreByName = maps.Clone(d.genreByName)
	c.books = maps.Clone(d.books)
	c.stock = maps.Clone(d.stock)
	c.carts = maps.Clone(d.carts)
	c.cartByUser = maps.Clone(d.cartByUser)
	c.cartLines = maps.Clone(d.cartLines)
	c.statuses = slices.Clone(d.statuses)
	c.orders = maps.Clone(d.orders)
	c.orderLines = maps.Clone(d.orderLines)
	c.jobs = maps.Clone(d.jobs)
	return &c
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

// =============================================================================
// Querier
// =============================================================================

type memoryTx struct {
	data *memoryData
	now  func() time.Time
}

var _ Querier = (*memoryTx)(nil)

func (t *memoryTx) GetBook(ctx context.Context, id int64) (GetBookRow, error) {
	b, ok := t.data.books[id]
	if !ok {
		return GetBookRow{}, pgx.ErrNoRows
	}
	return GetBookRow{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Price:     b.Price,
		Image:     b.Image,
		GenreName: t.data.genres[b.GenreID].Name,
	}, nil
}

func (t *memoryTx) GetStock(ctx context.Context, bookID int64) (Stock, error) {
	s, ok := t.data.stock[bookID]
	if !ok {
		return Stock{}, pgx.ErrNoRows
	}
	return s, nil
}

func (t *memoryTx) GetStockForUpdate(ctx context.Context, bookID int64) (Stock, error) {
	return t.GetStock(ctx, bookID)
}

func (t *memoryTx) UpdateStockQuantity(ctx context.Context, arg UpdateStockQuantityParams) error {
	s, ok := t.data.stock[arg.BookID]
	if !ok {
		return nil
	}
	if arg.Quantity < 0 {
		return fmt.Errorf("%w: stock quantity check violated", domain.ErrStockContention)
	}
	s.Quantity = arg.Quantity
	s.UpdatedAt = t.now()
	t.data.stock[arg.BookID] = s
	return nil
}

func (t *memoryTx) UpsertStock(ctx context.Context, arg UpsertStockParams) (Stock, error) {
	if _, ok := t.data.books[arg.BookID]; !ok {
		return Stock{}, fmt.Errorf("stock references unknown book %d", arg.BookID)
	}
	s, ok := t.data.stock[arg.BookID]
	if !ok {
		t.data.stockSeq++
		s = Stock{ID: t.data.stockSeq, BookID: arg.BookID}
	}
	s.Quantity = arg.Quantity
	s.UpdatedAt = t.now()
	t.data.stock[arg.BookID] = s
	return s, nil
}

func (t *memoryTx) IncrementStock(ctx context.Context, arg IncrementStockParams) (Stock, error) {
	current := int32(0)
	if s, ok := t.data.stock[arg.BookID]; ok {
		current = s.Quantity
	}
	return t.UpsertStock(ctx, UpsertStockParams{BookID: arg.BookID, Quantity: current + arg.Quantity})
}

func (t *memoryTx) ListLowStock(ctx context.Context, threshold int32) ([]ListLowStockRow, error) {
	items := []ListLowStockRow{}
	for _, s := range t.data.stock {
		if s.Quantity <= threshold {
			items = append(items, ListLowStockRow{
				BookID:   s.BookID,
				Title:    t.data.books[s.BookID].Title,
				Quantity: s.Quantity,
			})
		}
	}
	slices.SortFunc(items, func(a, b ListLowStockRow) int {
		if a.Quantity != b.Quantity {
			return int(a.Quantity - b.Quantity)
		}
		if a.Title < b.Title {
			return -1
		}
		if a.Title > b.Title {
			return 1
		}
		return 0
	})
	return items, nil
}

func (t *memoryTx) GetCartByUserID(ctx context.Context, userID string) (Cart, error) {
	id, ok := t.data.cartByUser[userID]
	if !ok {
		return Cart{}, pgx.ErrNoRows
	}
	return t.data.carts[id], nil
}

func (t *memoryTx) CreateCart(ctx context.Context, userID string) (Cart, error) {
	if id, ok := t.data.cartByUser[userID]; ok {
		return t.data.carts[id], nil
	}
	t.data.cartSeq++
	c := Cart{ID: t.data.cartSeq, UserID: userID, CreatedAt: t.now()}
	t.data.carts[c.ID] = c
	t.data.cartByUser[userID] = c.ID
	return c, nil
}

func (t *memoryTx) GetCartLine(ctx context.Context, arg GetCartLineParams) (CartLine, error) {
	for _, l := range t.data.cartLines {
		if l.CartID == arg.CartID && l.BookID == arg.BookID {
			return l, nil
		}
	}
	return CartLine{}, pgx.ErrNoRows
}

func (t *memoryTx) AddCartLine(ctx context.Context, arg AddCartLineParams) (AddCartLineRow, error) {
	if arg.Quantity < 1 {
		return AddCartLineRow{}, fmt.Errorf("cart line quantity must be positive")
	}
	if l, err := t.GetCartLine(ctx, GetCartLineParams{CartID: arg.CartID, BookID: arg.BookID}); err == nil {
		if l.Quantity > arg.MaxQuantity-arg.Quantity {
			return AddCartLineRow{}, pgx.ErrNoRows
		}
		l.Quantity += arg.Quantity
		t.data.cartLines[l.ID] = l
		return AddCartLineRow{
			ID:        l.ID,
			CartID:    l.CartID,
			BookID:    l.BookID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}, nil
	}

	t.data.lineSeq++
	l := CartLine{
		ID:        t.data.lineSeq,
		CartID:    arg.CartID,
		BookID:    arg.BookID,
		Quantity:  arg.Quantity,
		UnitPrice: arg.UnitPrice,
	}
	t.data.cartLines[l.ID] = l
	return AddCartLineRow{
		ID:        l.ID,
		CartID:    l.CartID,
		BookID:    l.BookID,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice,
		Inserted:  true,
	}, nil
}

func (t *memoryTx) UpdateCartLineQuantity(ctx context.Context, arg UpdateCartLineQuantityParams) error {
	l, ok := t.data.cartLines[arg.ID]
	if !ok {
		return nil
	}
	l.Quantity = arg.Quantity
	t.data.cartLines[arg.ID] = l
	return nil
}

func (t *memoryTx) DeleteCartLine(ctx context.Context, id int64) error {
	delete(t.data.cartLines, id)
	return nil
}

func (t *memoryTx) ListCartLines(ctx context.Context, cartID int64) ([]ListCartLinesRow, error) {
	items := []ListCartLinesRow{}
	for _, id := range sortedKeys(t.data.cartLines) {
		l := t.data.cartLines[id]
		if l.CartID != cartID {
			continue
		}
		b := t.data.books[l.BookID]
		items = append(items, ListCartLinesRow{
			ID:        l.ID,
			BookID:    l.BookID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Title:     b.Title,
			Author:    b.Author,
			Image:     b.Image,
			GenreName: t.data.genres[b.GenreID].Name,
		})
	}
	return items, nil
}

func (t *memoryTx) DeleteCartLines(ctx context.Context, cartID int64) (int64, error) {
	var n int64
	for id, l := range t.data.cartLines {
		if l.CartID == cartID {
			delete(t.data.cartLines, id)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) GetOrderStatusByName(ctx context.Context, name string) (OrderStatus, error) {
	for _, s := range t.data.statuses {
		if s.Name == name {
			return s, nil
		}
	}
	return OrderStatus{}, pgx.ErrNoRows
}

func (t *memoryTx) GetOrderStatus(ctx context.Context, id int32) (OrderStatus, error) {
	for _, s := range t.data.statuses {
		if s.ID == id {
			return s, nil
		}
	}
	return OrderStatus{}, pgx.ErrNoRows
}

func (t *memoryTx) ListOrderStatuses(ctx context.Context) ([]OrderStatus, error) {
	return slices.Clone(t.data.statuses), nil
}

func (t *memoryTx) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	if _, err := t.GetOrderStatus(ctx, arg.StatusID); err != nil {
		return Order{}, fmt.Errorf("order references unknown status %d", arg.StatusID)
	}
	t.data.orderSeq++
	o := Order{
		ID:            t.data.orderSeq,
		UserID:        arg.UserID,
		StatusID:      arg.StatusID,
		IsPaid:        arg.IsPaid,
		PaymentMethod: arg.PaymentMethod,
		Name:          arg.Name,
		Email:         arg.Email,
		MobileNumber:  arg.MobileNumber,
		Address:       arg.Address,
		StockApplied:  arg.StockApplied,
		CreatedAt:     t.now(),
	}
	t.data.orders[o.ID] = o
	return o, nil
}

func (t *memoryTx) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	if _, ok := t.data.orders[arg.OrderID]; !ok {
		return OrderLine{}, fmt.Errorf("order line references unknown order %d", arg.OrderID)
	}
	t.data.orderLineSeq++
	l := OrderLine{
		ID:        t.data.orderLineSeq,
		OrderID:   arg.OrderID,
		BookID:    arg.BookID,
		Quantity:  arg.Quantity,
		UnitPrice: arg.UnitPrice,
	}
	t.data.orderLines[l.ID] = l
	return l, nil
}

func (t *memoryTx) withStatus(o Order) OrderWithStatus {
	s, _ := t.GetOrderStatus(context.Background(), o.StatusID)
	return OrderWithStatus{Order: o, StatusName: s.Name}
}

func (t *memoryTx) GetOrder(ctx context.Context, id int64) (OrderWithStatus, error) {
	o, ok := t.data.orders[id]
	if !ok {
		return OrderWithStatus{}, pgx.ErrNoRows
	}
	return t.withStatus(o), nil
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, ok := t.data.orders[id]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (t *memoryTx) ListOrders(ctx context.Context, filter []OrderPredicate) ([]OrderWithStatus, error) {
	items := []OrderWithStatus{}
	ids := sortedKeys(t.data.orders)
	slices.Reverse(ids)
	for _, id := range ids {
		o := t.data.orders[id]
		if Matches(o, filter) {
			items = append(items, t.withStatus(o))
		}
	}
	return items, nil
}

func (t *memoryTx) ListOrderLines(ctx context.Context, orderIDs []int64) ([]ListOrderLinesRow, error) {
	items := []ListOrderLinesRow{}
	for _, id := range sortedKeys(t.data.orderLines) {
		l := t.data.orderLines[id]
		if !slices.Contains(orderIDs, l.OrderID) {
			continue
		}
		b := t.data.books[l.BookID]
		items = append(items, ListOrderLinesRow{
			ID:        l.ID,
			OrderID:   l.OrderID,
			BookID:    l.BookID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Title:     b.Title,
			GenreName: t.data.genres[b.GenreID].Name,
		})
	}
	return items, nil
}

func (t *memoryTx) updateOrder(id int64, fn func(*Order)) {
	o, ok := t.data.orders[id]
	if !ok {
		return
	}
	fn(&o)
	t.data.orders[id] = o
}

func (t *memoryTx) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) error {
	t.updateOrder(arg.ID, func(o *Order) {
		o.IsPaid = true
		o.StatusID = arg.StatusID
		o.StockApplied = true
	})
	return nil
}

func (t *memoryTx) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error {
	t.updateOrder(arg.ID, func(o *Order) { o.StatusID = arg.StatusID })
	return nil
}

func (t *memoryTx) SetOrderPaid(ctx context.Context, arg SetOrderPaidParams) error {
	t.updateOrder(arg.ID, func(o *Order) { o.IsPaid = arg.IsPaid })
	return nil
}

func (t *memoryTx) SetOrderPaymentSession(ctx context.Context, arg SetOrderPaymentSessionParams) error {
	t.updateOrder(arg.ID, func(o *Order) { o.PaymentSessionID = arg.SessionID })
	return nil
}

func (t *memoryTx) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	t.data.jobSeq++
	now := t.now()
	j := Job{
		ID:         t.data.jobSeq,
		JobType:    arg.JobType,
		Payload:    slices.Clone(arg.Payload),
		Status:     JobStatusPending,
		MaxRetries: arg.MaxRetries,
		RunAt:      now,
		CreatedAt:  now,
	}
	t.data.jobs[j.ID] = j
	return j, nil
}

func (t *memoryTx) ClaimNextJob(ctx context.Context, workerID string) (Job, error) {
	now := t.now()
	for _, id := range sortedKeys(t.data.jobs) {
		j := t.data.jobs[id]
		if j.Status != JobStatusPending || j.RunAt.After(now) {
			continue
		}
		j.Status = JobStatusRunning
		j.Attempts++
		j.WorkerID = workerID
		t.data.jobs[id] = j
		return j, nil
	}
	return Job{}, pgx.ErrNoRows
}

func (t *memoryTx) CompleteJob(ctx context.Context, id int64) error {
	if j, ok := t.data.jobs[id]; ok {
		j.Status = JobStatusCompleted
		t.data.jobs[id] = j
	}
	return nil
}

func (t *memoryTx) FailJob(ctx context.Context, arg FailJobParams) error {
	j, ok := t.data.jobs[arg.ID]
	if !ok {
		return nil
	}
	j.LastError = arg.ErrorMessage
	if j.Attempts >= j.MaxRetries {
		j.Status = JobStatusFailed
	} else {
		j.Status = JobStatusPending
		j.RunAt = t.now().Add(time.Duration(j.Attempts) * 30 * time.Second)
	}
	t.data.jobs[arg.ID] = j
	return nil
}
